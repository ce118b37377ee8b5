package engine

import (
	"fmt"
	"strings"
	"time"
)

// Package manager adapter names.
const (
	ManagerScoop     = "scoop"
	ManagerWinget    = "winget"
	ManagerApt       = "apt"
	ManagerPacman    = "pacman"
	ManagerDnf       = "dnf"
	ManagerPSGallery = "psgallery"

	// ManagerAuto asks for detection from the host's os-release file.
	ManagerAuto = "auto"
)

// Category groups planned actions. Categories run strictly in CategoryOrder
// because later categories assume earlier ones are on the execution path.
type Category string

const (
	CategoryPrerequisites Category = "prerequisites"
	CategorySources       Category = "sources"
	CategoryPackages      Category = "packages"
	CategoryRuntimes      Category = "runtimes"
	CategoryEnvironment   Category = "environment"
	CategoryDotfiles      Category = "dotfiles"
)

// CategoryOrder is the fixed execution order of categories.
var CategoryOrder = []Category{
	CategoryPrerequisites,
	CategorySources,
	CategoryPackages,
	CategoryRuntimes,
	CategoryEnvironment,
	CategoryDotfiles,
}

// Rank returns the position of the category in CategoryOrder, or -1.
func (c Category) Rank() int {
	for i, cat := range CategoryOrder {
		if cat == c {
			return i
		}
	}
	return -1
}

// AltersPath reports whether actions in the category may put new
// executables on the persisted path.
func (c Category) AltersPath() bool {
	switch c {
	case CategoryPrerequisites, CategoryPackages, CategoryRuntimes, CategoryEnvironment:
		return true
	default:
		return false
	}
}

// Manifest is the declarative description of desired state for one platform target.
// It is loaded once per run and treated as immutable.
type Manifest struct {
	// Target names the platform target (e.g. "windows", "arch").
	Target string `json:"target"`

	// Path is the file the manifest was loaded from.
	Path string `json:"-"`

	// PackageManager is the primary package manager, or "auto".
	PackageManager string `json:"packageManager" validate:"required,oneof=scoop winget apt pacman dnf auto"`

	// Sources are package sources (scoop buckets) to register.
	Sources []SourceSpec `json:"sources,omitempty" validate:"dive"`

	// Packages are the tools to install, in declaration order.
	Packages []PackageSpec `json:"packages,omitempty" validate:"dive"`

	// Runtimes are language runtimes installed through the runtime manager.
	Runtimes []RuntimeSpec `json:"runtimes,omitempty" validate:"dive"`

	// Environment lists persisted environment variables, sorted by key.
	Environment []EnvVarSpec `json:"environment,omitempty" validate:"dive"`

	// Dotfiles configures the dotfile manager, if any.
	Dotfiles *DotfilesSpec `json:"dotfiles,omitempty"`

	// Optional holds opt-in lists merged only after user consent.
	Optional *OptionalSection `json:"optional,omitempty"`
}

// OptionalSection mirrors the source/package/runtime lists of a manifest.
type OptionalSection struct {
	Sources  []SourceSpec  `json:"sources,omitempty" validate:"dive"`
	Packages []PackageSpec `json:"packages,omitempty" validate:"dive"`
	Runtimes []RuntimeSpec `json:"runtimes,omitempty" validate:"dive"`
}

// Empty reports whether the section declares nothing.
func (o *OptionalSection) Empty() bool {
	return o == nil || (len(o.Sources) == 0 && len(o.Packages) == 0 && len(o.Runtimes) == 0)
}

// ManagerFor returns the package manager that installs spec.
func (m *Manifest) ManagerFor(spec PackageSpec) string {
	if spec.Manager != "" {
		return spec.Manager
	}
	return m.PackageManager
}

// WithPackageManager returns a copy of the manifest whose primary package
// manager is pm. The receiver is not modified.
func (m *Manifest) WithPackageManager(pm string) *Manifest {
	out := *m
	out.PackageManager = pm
	return &out
}

// SourceSpec is a package source (bucket) for a package manager.
type SourceSpec struct {
	Name    string `json:"name" validate:"required"`
	URL     string `json:"url,omitempty"`
	Manager string `json:"manager" validate:"required"`
}

// PackageSpec is a tool name plus an optional source qualifier.
// An empty Source means the manager's canonical source, and an empty
// Manager means the manifest's primary package manager.
type PackageSpec struct {
	Name    string `json:"name" validate:"required"`
	Source  string `json:"source,omitempty"`
	Manager string `json:"manager,omitempty"`
}

// QualifiedName renders source/name, or just the name without a source.
func (p PackageSpec) QualifiedName() string {
	if p.Source == "" {
		return p.Name
	}
	return p.Source + "/" + p.Name
}

// RuntimeSpec is a runtime identifier plus a version constraint.
type RuntimeSpec struct {
	Name    string `json:"name" validate:"required"`
	Version string `json:"version" validate:"required"`

	// Command is the executable probed to decide whether the runtime is installed.
	Command string `json:"command" validate:"required"`
}

// String renders name@version.
func (r RuntimeSpec) String() string {
	return r.Name + "@" + r.Version
}

// EnvVarSpec is an environment variable persisted for new sessions.
type EnvVarSpec struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// DotfilesSpec identifies the dotfile repository to initialize and apply.
type DotfilesSpec struct {
	Repo   string `json:"repo" validate:"required"`
	Branch string `json:"branch,omitempty"`
}

// ManagerState is the probed state of one package manager.
type ManagerState struct {
	// Available is true when the manager's executable is on the path.
	Available bool

	// Packages maps installed package names to the source they came from.
	// An empty source means the manager does not track sources.
	Packages map[string]string

	// Sources maps registered source names to their URLs.
	Sources map[string]string

	// PackagesErr is set when installed packages could not be listed.
	PackagesErr error

	// SourcesErr is set when registered sources could not be listed.
	SourcesErr error
}

// DotfileState is the probed state of the dotfile manager.
type DotfileState struct {
	SourcePath string
	Origin     string
	HasTargets bool
}

// HostState is a point-in-time snapshot of the host. It is never persisted
// and is recomputed on every run.
type HostState struct {
	// Managers is keyed by package manager name.
	Managers map[string]ManagerState

	// Tools records availability of non package manager tools (runtime and dotfile managers).
	Tools map[string]bool

	// Runtimes maps resolved runtime commands found on the path to their location.
	Runtimes map[string]string

	// Env holds the environment variables visible after reloading persisted state.
	Env map[string]string

	// Dotfiles is the dotfile manager state.
	Dotfiles DotfileState
}

// NewHostState returns an empty host state.
func NewHostState() *HostState {
	return &HostState{
		Managers: make(map[string]ManagerState),
		Tools:    make(map[string]bool),
		Runtimes: make(map[string]string),
		Env:      make(map[string]string),
	}
}

// ToolAvailable reports whether a package manager or tool is on the path.
func (h *HostState) ToolAvailable(name string) bool {
	if ms, ok := h.Managers[name]; ok {
		return ms.Available
	}
	return h.Tools[name]
}

// ActionKind tags the PlannedAction variant.
type ActionKind string

const (
	ActionSkip      ActionKind = "skip"
	ActionInstall   ActionKind = "install"
	ActionReconcile ActionKind = "reconcile"
)

// SkipReason explains a Skip action.
type SkipReason string

const (
	SkipAlreadySatisfied SkipReason = "already-satisfied"
	SkipPolicyDenied     SkipReason = "policy-denied"
)

// DotfilesStep selects which dotfile manager operation an install performs.
type DotfilesStep string

const (
	DotfilesInitApply DotfilesStep = "init-apply"
	DotfilesApply     DotfilesStep = "apply"
)

// PlannedAction is one entry of a plan: Skip(reason), Install(spec) or
// Reconcile(conflict). Exactly one subject field is set.
type PlannedAction struct {
	Kind     ActionKind `json:"kind"`
	Category Category   `json:"category"`

	// Adapter names the adapter that owns the subject (package manager, "mise", "chezmoi", "env").
	Adapter string `json:"adapter"`

	Prerequisite string        `json:"prerequisite,omitempty"`
	Source       *SourceSpec   `json:"source,omitempty"`
	Package      *PackageSpec  `json:"package,omitempty"`
	Runtime      *RuntimeSpec  `json:"runtime,omitempty"`
	EnvVar       *EnvVarSpec   `json:"env_var,omitempty"`
	Dotfiles     *DotfilesSpec `json:"dotfiles,omitempty"`
	DotfilesStep DotfilesStep  `json:"dotfiles_step,omitempty"`

	// Reason is set for Skip actions.
	Reason SkipReason `json:"reason,omitempty"`

	// Detail carries the conflict description for Reconcile and context for Skip.
	Detail string `json:"detail,omitempty"`

	// BestEffort marks installs planned without knowing whether the subject exists.
	BestEffort bool `json:"best_effort,omitempty"`
}

// Subject returns the human identifier of what the action is about.
func (a PlannedAction) Subject() string {
	switch {
	case a.Prerequisite != "":
		return a.Prerequisite
	case a.Source != nil:
		return a.Source.Name
	case a.Package != nil:
		return a.Package.QualifiedName()
	case a.Runtime != nil:
		return a.Runtime.String()
	case a.EnvVar != nil:
		return a.EnvVar.Key
	case a.Dotfiles != nil:
		return a.Dotfiles.Repo
	}
	return ""
}

// ID returns a stable identifier: category/adapter/subject.
func (a PlannedAction) ID() string {
	return fmt.Sprintf("%s/%s/%s", a.Category, a.Adapter, a.Subject())
}

// String renders the action on one line.
func (a PlannedAction) String() string {
	var b strings.Builder
	b.WriteString(string(a.Kind))
	b.WriteByte(' ')
	b.WriteString(a.ID())
	switch a.Kind {
	case ActionSkip:
		fmt.Fprintf(&b, " (%s)", a.Reason)
	case ActionReconcile:
		fmt.Fprintf(&b, ": %s", a.Detail)
	case ActionInstall:
		if a.DotfilesStep != "" {
			fmt.Fprintf(&b, " [%s]", a.DotfilesStep)
		}
		if a.BestEffort {
			b.WriteString(" [best-effort]")
		}
	}
	return b.String()
}

// Plan is the ordered output of the planner.
type Plan struct {
	// ID is derived from the plan content; identical plans share an ID.
	ID string `json:"id"`

	Target         string          `json:"target"`
	PackageManager string          `json:"package_manager"`
	Actions        []PlannedAction `json:"actions"`

	// Warnings are non-fatal planning notes, such as unavailable probes.
	Warnings []string `json:"warnings,omitempty"`
}

// Count returns the number of actions of the given kind.
func (p *Plan) Count(kind ActionKind) int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Outcome is the recorded result of one action.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeAlreadySatisfied Outcome = "already-satisfied"
	OutcomeFailed           Outcome = "failed"
	OutcomeWarned           Outcome = "warned"
)

// ExecutionResult is the immutable outcome of one planned action.
type ExecutionResult struct {
	Action   PlannedAction `json:"action"`
	Outcome  Outcome       `json:"outcome"`
	Cause    string        `json:"cause,omitempty"`
	ExitCode int           `json:"exit_code"`

	// Command is the external invocation the action maps to, identical in dry-run and live mode.
	Command  string        `json:"command,omitempty"`
	Duration time.Duration `json:"duration"`

	// Err classifies a failed or policy-denied result. It is not serialized;
	// Cause carries the text.
	Err error `json:"-"`
}
