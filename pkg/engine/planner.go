package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// PlanOptions narrows which categories are planned.
type PlanOptions struct {
	// SkipPackages drops sources and packages.
	SkipPackages bool

	// SkipRuntimes drops runtimes.
	SkipRuntimes bool

	// SkipEnvironment drops environment variables.
	SkipEnvironment bool

	// SkipDotfiles drops dotfile application.
	SkipDotfiles bool
}

// Planner diffs a manifest against a host state snapshot.
// Plan is deterministic and has no side effects: identical inputs always
// produce an identical plan, which dry-run previews rely on.
type Planner struct {
	canonical      map[string]string
	runtimeManager string
	dotfileManager string
	envStore       string
}

// NewPlanner creates a planner for the given adapter set. Only adapter
// names and canonical sources are read; adapters are never invoked.
func NewPlanner(adapters *Adapters) *Planner {
	p := &Planner{
		canonical:      make(map[string]string),
		runtimeManager: "mise",
		dotfileManager: "chezmoi",
		envStore:       "env",
	}
	if adapters == nil {
		return p
	}
	for name, pm := range adapters.Packages {
		p.canonical[name] = pm.CanonicalSource()
	}
	if adapters.Runtime != nil {
		p.runtimeManager = adapters.Runtime.Name()
	}
	if adapters.Dotfiles != nil {
		p.dotfileManager = adapters.Dotfiles.Name()
	}
	if adapters.Env != nil {
		p.envStore = adapters.Env.Name()
	}
	return p
}

// Plan produces the ordered action list for manifest m against host.
func (p *Planner) Plan(m *Manifest, host *HostState, opts PlanOptions) (*Plan, error) {
	if m == nil {
		return nil, NewPermanentError("manifest is nil", nil).
			WithCode(ErrCodeValidation)
	}
	if m.PackageManager == "" || m.PackageManager == ManagerAuto {
		return nil, NewPermanentError("primary package manager is not resolved", nil).
			WithCode(ErrCodeValidation).
			WithResource(m.Path)
	}
	if host == nil {
		host = NewHostState()
	}

	b := &planBuilder{
		planner: p,
		host:    host,
		warned:  make(map[string]bool),
	}

	b.prerequisites(m, opts)
	if !opts.SkipPackages {
		b.sources(m)
		b.packages(m)
	}
	if !opts.SkipRuntimes {
		b.runtimes(m)
	}
	if !opts.SkipEnvironment {
		b.environment(m)
	}
	if !opts.SkipDotfiles && m.Dotfiles != nil {
		b.dotfiles(m)
	}

	plan := &Plan{
		Target:         m.Target,
		PackageManager: m.PackageManager,
		Actions:        b.actions,
		Warnings:       b.warnings,
	}
	plan.ID = plan.ContentID()
	return plan, nil
}

type planBuilder struct {
	planner  *Planner
	host     *HostState
	actions  []PlannedAction
	warnings []string
	warned   map[string]bool
}

func (b *planBuilder) add(a PlannedAction) {
	b.actions = append(b.actions, a)
}

func (b *planBuilder) warn(key, format string, args ...interface{}) {
	if b.warned[key] {
		return
	}
	b.warned[key] = true
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// prerequisites emits a bootstrap install for every tool the manifest needs
// that is not on the path, in order of first use.
func (b *planBuilder) prerequisites(m *Manifest, opts PlanOptions) {
	var needed []string
	seen := make(map[string]bool)
	need := func(name string) {
		if !seen[name] {
			seen[name] = true
			needed = append(needed, name)
		}
	}

	if !opts.SkipPackages {
		for _, src := range m.Sources {
			need(src.Manager)
		}
		for _, pkg := range m.Packages {
			need(m.ManagerFor(pkg))
		}
	}
	if !opts.SkipRuntimes && len(m.Runtimes) > 0 {
		need(b.planner.runtimeManager)
	}
	if !opts.SkipDotfiles && m.Dotfiles != nil {
		need(b.planner.dotfileManager)
	}

	for _, name := range needed {
		if b.host.ToolAvailable(name) {
			continue
		}
		b.add(PlannedAction{
			Kind:         ActionInstall,
			Category:     CategoryPrerequisites,
			Adapter:      name,
			Prerequisite: name,
		})
	}
}

func (b *planBuilder) sources(m *Manifest) {
	for _, src := range m.Sources {
		src := src
		action := PlannedAction{
			Kind:     ActionInstall,
			Category: CategorySources,
			Adapter:  src.Manager,
			Source:   &src,
		}

		ms := b.host.Managers[src.Manager]
		switch {
		case !ms.Available:
		case ms.SourcesErr != nil:
			action.BestEffort = true
			b.warn("sources/"+src.Manager,
				"sources for %s could not be listed (%v); source installs are best-effort", src.Manager, ms.SourcesErr)
		default:
			registered, ok := lookupFold(ms.Sources, src.Name)
			if !ok {
				break
			}
			url := ms.Sources[registered]
			if src.URL != "" && url != "" && !SameRepository(url, src.URL) {
				action.Kind = ActionReconcile
				action.Detail = fmt.Sprintf("source %q is registered to %s but the manifest declares %s",
					src.Name, url, src.URL)
				break
			}
			action.Kind = ActionSkip
			action.Reason = SkipAlreadySatisfied
		}
		b.add(action)
	}
}

func (b *planBuilder) packages(m *Manifest) {
	for _, pkg := range m.Packages {
		spec := pkg
		spec.Manager = m.ManagerFor(pkg)
		action := PlannedAction{
			Kind:     ActionInstall,
			Category: CategoryPackages,
			Adapter:  spec.Manager,
			Package:  &spec,
		}

		ms := b.host.Managers[spec.Manager]
		switch {
		case !ms.Available:
		case ms.PackagesErr != nil:
			action.BestEffort = true
			b.warn("packages/"+spec.Manager,
				"installed packages for %s could not be listed (%v); installs are best-effort", spec.Manager, ms.PackagesErr)
		default:
			installed, ok := lookupFold(ms.Packages, spec.Name)
			if !ok {
				break
			}
			have := ms.Packages[installed]
			want := spec.Source
			if want == "" {
				want = b.planner.canonical[spec.Manager]
			}
			if want != "" && have != "" && !strings.EqualFold(want, have) {
				action.Kind = ActionReconcile
				action.Detail = fmt.Sprintf("%s is installed from source %q but the manifest declares %q",
					spec.Name, have, want)
				break
			}
			action.Kind = ActionSkip
			action.Reason = SkipAlreadySatisfied
		}
		b.add(action)
	}
}

func (b *planBuilder) runtimes(m *Manifest) {
	for _, rt := range m.Runtimes {
		rt := rt
		action := PlannedAction{
			Kind:     ActionInstall,
			Category: CategoryRuntimes,
			Adapter:  b.planner.runtimeManager,
			Runtime:  &rt,
		}
		if path, ok := b.host.Runtimes[rt.Command]; ok {
			action.Kind = ActionSkip
			action.Reason = SkipAlreadySatisfied
			action.Detail = path
		}
		b.add(action)
	}
}

func (b *planBuilder) environment(m *Manifest) {
	for _, ev := range m.Environment {
		ev := ev
		action := PlannedAction{
			Kind:     ActionInstall,
			Category: CategoryEnvironment,
			Adapter:  b.planner.envStore,
			EnvVar:   &ev,
		}
		if current, ok := b.host.Env[ev.Key]; ok {
			if current == ev.Value {
				action.Kind = ActionSkip
				action.Reason = SkipAlreadySatisfied
			} else {
				action.Kind = ActionReconcile
				action.Detail = fmt.Sprintf("%s is set to %q but the manifest declares %q",
					ev.Key, current, ev.Value)
			}
		}
		b.add(action)
	}
}

// dotfiles never re-points an existing source at a different repository;
// a mismatch is surfaced for a human decision.
func (b *planBuilder) dotfiles(m *Manifest) {
	spec := *m.Dotfiles
	action := PlannedAction{
		Kind:         ActionInstall,
		Category:     CategoryDotfiles,
		Adapter:      b.planner.dotfileManager,
		Dotfiles:     &spec,
		DotfilesStep: DotfilesInitApply,
	}

	state := b.host.Dotfiles
	switch {
	case !b.host.ToolAvailable(b.planner.dotfileManager) || state.SourcePath == "":
	case state.Origin == "":
		action.Kind = ActionReconcile
		action.DotfilesStep = ""
		action.Detail = fmt.Sprintf("dotfile source %s has no remote origin; manifest declares %s",
			state.SourcePath, spec.Repo)
	case !SameRepository(state.Origin, spec.Repo):
		action.Kind = ActionReconcile
		action.DotfilesStep = ""
		action.Detail = fmt.Sprintf("dotfile source %s tracks %s but the manifest declares %s",
			state.SourcePath, state.Origin, spec.Repo)
	case !state.HasTargets:
		action.DotfilesStep = DotfilesApply
	default:
		action.Kind = ActionSkip
		action.Reason = SkipAlreadySatisfied
		action.DotfilesStep = ""
		action.Detail = state.SourcePath
	}
	b.add(action)
}

// lookupFold finds key in m, falling back to a case-insensitive match.
// Among several case-insensitive matches the smallest key wins.
func lookupFold(m map[string]string, key string) (string, bool) {
	if _, ok := m[key]; ok {
		return key, true
	}
	var matches []string
	for k := range m {
		if strings.EqualFold(k, key) {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// SameRepository compares two repository references after normalizing
// scheme, user info, ".git" suffixes and GitHub shorthands ("user" and
// "user/repo").
func SameRepository(a, b string) bool {
	return normalizeRepo(a) == normalizeRepo(b)
}

func normalizeRepo(ref string) string {
	r := strings.TrimSpace(strings.ToLower(ref))
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git+ssh://"} {
		r = strings.TrimPrefix(r, prefix)
	}
	if at := strings.Index(r, "@"); at >= 0 && !strings.Contains(r[:at], "/") {
		r = r[at+1:]
	}
	if host, path, ok := strings.Cut(r, ":"); ok && !strings.Contains(host, "/") {
		r = host + "/" + strings.TrimPrefix(path, "/")
	}
	r = strings.TrimSuffix(strings.TrimSuffix(r, "/"), ".git")

	switch strings.Count(r, "/") {
	case 0:
		return "github.com/" + r + "/dotfiles"
	case 1:
		if !strings.Contains(r[:strings.Index(r, "/")], ".") {
			return "github.com/" + r
		}
	}
	return r
}

// ContentID derives a stable identifier from the plan content. Identical
// plans always produce the same ID.
func (p *Plan) ContentID() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", p.Target, p.PackageManager)
	for _, a := range p.Actions {
		b.WriteString(a.String())
		b.WriteByte('\n')
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}
