// Package probe inspects the live host. Every probe is read-only.
//
// Probes return typed outcomes. A package manager that cannot be queried
// yields a ProbeUnavailable error, never an empty set, so the planner can
// tell "nothing installed" apart from "could not determine".
package probe

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Status is the outcome of a command probe.
type Status string

const (
	StatusFound       Status = "found"
	StatusNotFound    Status = "not-found"
	StatusUnavailable Status = "unavailable"
)

// CommandProbe is the result of looking up an executable.
type CommandProbe struct {
	Status Status
	Path   string
}

// Found reports whether the command was located.
func (c CommandProbe) Found() bool { return c.Status == StatusFound }

// EnvProbe is the result of looking up an environment variable.
type EnvProbe struct {
	Present bool
	Value   string
}

// Prober queries the host through the adapter set.
type Prober struct {
	adapters *engine.Adapters
	pc       engine.PathContext
}

// New creates a prober. The path context is reloaded from persisted state
// first so variables and install directories from earlier runs are visible.
func New(adapters *engine.Adapters, pc engine.PathContext) *Prober {
	p := &Prober{adapters: adapters, pc: pc}
	if adapters != nil && adapters.Env != nil {
		persisted, err := adapters.Env.Persisted()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read persisted environment")
		} else {
			p.pc = engine.ReloadPath(persisted, pc)
		}
	}
	return p
}

// PathContext returns the reloaded context probes run with.
func (p *Prober) PathContext() engine.PathContext {
	return p.pc
}

// ProbeInstalledPackages returns installed package names mapped to their source.
func (p *Prober) ProbeInstalledPackages(ctx context.Context, manager string) (map[string]string, error) {
	pm, err := p.available(manager, "list-installed")
	if err != nil {
		return nil, err
	}
	installed, err := pm.ListInstalled(ctx, p.pc)
	if err != nil {
		return nil, engine.NewProbeUnavailableError(manager, "list-installed", err)
	}
	return installed, nil
}

// ProbeSources returns registered source names mapped to their URL.
func (p *Prober) ProbeSources(ctx context.Context, manager string) (map[string]string, error) {
	pm, err := p.available(manager, "list-sources")
	if err != nil {
		return nil, err
	}
	sources, err := pm.ListSources(ctx, p.pc)
	if err != nil {
		return nil, engine.NewProbeUnavailableError(manager, "list-sources", err)
	}
	return sources, nil
}

func (p *Prober) available(manager, operation string) (engine.PackageManager, error) {
	if p.adapters == nil {
		return nil, engine.NewProbeUnavailableError(manager, operation, nil)
	}
	pm, err := p.adapters.PackageManager(manager)
	if err != nil {
		return nil, engine.NewProbeUnavailableError(manager, operation, err)
	}
	if _, ok := p.pc.LookPath(pm.Binary()); !ok {
		return nil, engine.NewProbeUnavailableError(manager, operation, nil).
			WithDetail("binary", pm.Binary())
	}
	return pm, nil
}

// ProbeRuntimeCommand looks up a runtime's executable, including the runtime
// manager's shims.
func (p *Prober) ProbeRuntimeCommand(command string) CommandProbe {
	if p.adapters != nil && p.adapters.Runtime != nil {
		if path, ok := p.adapters.Runtime.ResolveCommandPath(p.pc, command); ok {
			return CommandProbe{Status: StatusFound, Path: path}
		}
		return CommandProbe{Status: StatusNotFound}
	}
	if path, ok := p.pc.LookPath(command); ok {
		return CommandProbe{Status: StatusFound, Path: path}
	}
	return CommandProbe{Status: StatusNotFound}
}

// ProbeEnvVar looks up a variable in the reloaded environment.
func (p *Prober) ProbeEnvVar(key string) EnvProbe {
	value, ok := p.pc.Get(key)
	return EnvProbe{Present: ok, Value: value}
}

// ProbeTool reports whether a tool's binary is on the path.
func (p *Prober) ProbeTool(tool engine.Tool) CommandProbe {
	if path, ok := p.pc.LookPath(tool.Binary()); ok {
		return CommandProbe{Status: StatusFound, Path: path}
	}
	return CommandProbe{Status: StatusNotFound}
}

// Snapshot probes everything the manifest refers to. Unavailable probes are
// recorded on the HostState rather than returned; the only error is
// cancellation.
func (p *Prober) Snapshot(ctx context.Context, m *engine.Manifest) (*engine.HostState, error) {
	ctx, span := otel.Tracer("bootkit/probe").Start(ctx, "snapshot")
	defer span.End()

	host := engine.NewHostState()
	if m == nil || p.adapters == nil {
		return host, nil
	}

	for _, name := range managersOf(m) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		host.Managers[name] = p.probeManager(ctx, name)
	}

	if p.adapters.Runtime != nil {
		host.Tools[p.adapters.Runtime.Name()] = p.ProbeTool(p.adapters.Runtime).Found()
	}
	for _, rt := range m.Runtimes {
		if probe := p.ProbeRuntimeCommand(rt.Command); probe.Found() {
			host.Runtimes[rt.Command] = probe.Path
		}
	}

	for _, ev := range m.Environment {
		if probe := p.ProbeEnvVar(ev.Key); probe.Present {
			host.Env[ev.Key] = probe.Value
		}
	}

	if p.adapters.Dotfiles != nil {
		dm := p.adapters.Dotfiles
		available := p.ProbeTool(dm).Found()
		host.Tools[dm.Name()] = available
		if available && m.Dotfiles != nil {
			host.Dotfiles = p.probeDotfiles(ctx, dm)
		}
	}

	span.SetAttributes(
		attribute.Int("probe.managers", len(host.Managers)),
		attribute.Int("probe.runtimes_found", len(host.Runtimes)),
	)
	log.Debug().
		Int("managers", len(host.Managers)).
		Int("runtimes_found", len(host.Runtimes)).
		Int("env_present", len(host.Env)).
		Msg("Host snapshot complete")

	return host, nil
}

func (p *Prober) probeManager(ctx context.Context, name string) engine.ManagerState {
	state := engine.ManagerState{}
	pm, err := p.adapters.PackageManager(name)
	if err != nil {
		state.PackagesErr = engine.NewProbeUnavailableError(name, "list-installed", err)
		state.SourcesErr = state.PackagesErr
		return state
	}
	if !p.ProbeTool(pm).Found() {
		return state
	}
	state.Available = true

	state.Packages, state.PackagesErr = p.ProbeInstalledPackages(ctx, name)
	if state.PackagesErr != nil {
		log.Warn().Err(state.PackagesErr).Str("manager", name).Msg("Installed packages could not be determined")
	}
	state.Sources, state.SourcesErr = p.ProbeSources(ctx, name)
	if state.SourcesErr != nil {
		log.Warn().Err(state.SourcesErr).Str("manager", name).Msg("Registered sources could not be determined")
	}
	return state
}

func (p *Prober) probeDotfiles(ctx context.Context, dm engine.DotfileManager) engine.DotfileState {
	var state engine.DotfileState
	source, ok := dm.SourcePath(ctx, p.pc)
	if !ok {
		return state
	}
	state.SourcePath = source
	state.Origin, _ = dm.RemoteOrigin(ctx, p.pc)

	has, err := dm.HasManagedTargets(ctx, p.pc)
	if err != nil {
		log.Warn().Err(err).Str("tool", dm.Name()).Msg("Managed targets could not be listed")
	}
	state.HasTargets = has
	return state
}

// managersOf lists the package managers a manifest refers to, in first-use order.
func managersOf(m *engine.Manifest) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	add(m.PackageManager)
	for _, src := range m.Sources {
		add(src.Manager)
	}
	for _, pkg := range m.Packages {
		add(m.ManagerFor(pkg))
	}
	return names
}
