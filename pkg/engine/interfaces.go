package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Command is one external process invocation.
type Command struct {
	Argv []string
	Env  []string
	Dir  string
}

// CommandResult captures the outcome of a finished process.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner starts external processes. A non-zero exit is reported through
// CommandResult.ExitCode; the error is reserved for processes that could not run.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
}

// Step is one unit of an Invocation: either an external command (Argv) or
// an in-process operation (Apply) described by Label.
type Step struct {
	Argv  []string
	Label string
	Apply func(ctx context.Context) error
}

// String renders the step as a shell-quoted command line.
func (s Step) String() string {
	if len(s.Argv) > 0 {
		return shellquote.Join(s.Argv...)
	}
	return s.Label
}

// Invocation is the ordered list of steps an adapter performs for an action.
type Invocation struct {
	Steps []Step
}

// Argv builds an invocation of a single external command.
func Argv(args ...string) Invocation {
	return Invocation{Steps: []Step{{Argv: args}}}
}

// Then appends the steps of next.
func (i Invocation) Then(next Invocation) Invocation {
	steps := make([]Step, 0, len(i.Steps)+len(next.Steps))
	steps = append(steps, i.Steps...)
	steps = append(steps, next.Steps...)
	return Invocation{Steps: steps}
}

// String joins the steps with " && ".
func (i Invocation) String() string {
	parts := make([]string, len(i.Steps))
	for n, s := range i.Steps {
		parts[n] = s.String()
	}
	return strings.Join(parts, " && ")
}

// Tool is implemented by every adapter.
type Tool interface {
	// Name is the adapter name used in manifests and plans.
	Name() string

	// Binary is the executable whose presence on the path makes the tool available.
	Binary() string

	// BootstrapInvocation installs the tool itself. Tools that cannot be
	// installed automatically return an error.
	BootstrapInvocation() (Invocation, error)
}

// PackageManager is the adapter contract for package managers.
type PackageManager interface {
	Tool

	// CanonicalSource is the source a package comes from when none is declared.
	CanonicalSource() string

	// ListInstalled maps installed package names to their source.
	ListInstalled(ctx context.Context, pc PathContext) (map[string]string, error)

	// IsPackageInstalled checks a single package.
	IsPackageInstalled(ctx context.Context, pc PathContext, name string) (bool, error)

	// ListSources maps registered source names to URLs.
	ListSources(ctx context.Context, pc PathContext) (map[string]string, error)

	InstallInvocation(pkg PackageSpec) Invocation
	AddSourceInvocation(src SourceSpec) Invocation
}

// RuntimeManager is the adapter contract for the runtime version manager.
type RuntimeManager interface {
	Tool

	// InstallInvocation installs a runtime and materializes its shims.
	InstallInvocation(rt RuntimeSpec) Invocation

	// ShimsInvocation regenerates shims for every installed runtime.
	ShimsInvocation() Invocation

	// ResolveCommandPath locates a runtime's executable.
	ResolveCommandPath(pc PathContext, command string) (string, bool)
}

// DotfileManager is the adapter contract for the dotfile manager.
type DotfileManager interface {
	Tool

	SourcePath(ctx context.Context, pc PathContext) (string, bool)
	RemoteOrigin(ctx context.Context, pc PathContext) (string, bool)
	HasManagedTargets(ctx context.Context, pc PathContext) (bool, error)

	InitAndApplyInvocation(spec DotfilesSpec) Invocation
	ApplyInvocation() Invocation
}

// EnvStore persists environment variables for future sessions.
type EnvStore interface {
	// Name is the adapter name used in plans.
	Name() string

	// Persisted reads variables and path directories from persisted state.
	Persisted() (PersistedEnv, error)

	// SetInvocation persists one variable.
	SetInvocation(v EnvVarSpec) Invocation
}

// Adapters is the closed set of adapters selected at startup.
type Adapters struct {
	Packages map[string]PackageManager
	Runtime  RuntimeManager
	Dotfiles DotfileManager
	Env      EnvStore
}

// PackageManager returns the named package manager adapter.
func (a *Adapters) PackageManager(name string) (PackageManager, error) {
	pm, ok := a.Packages[name]
	if !ok {
		return nil, NewPermanentError("unknown package manager", nil).
			WithCode(ErrCodeUnknownAdapter).
			WithResource(name)
	}
	return pm, nil
}

// Tool returns any adapter implementing Tool by name.
func (a *Adapters) Tool(name string) (Tool, error) {
	if pm, ok := a.Packages[name]; ok {
		return pm, nil
	}
	if a.Runtime != nil && a.Runtime.Name() == name {
		return a.Runtime, nil
	}
	if a.Dotfiles != nil && a.Dotfiles.Name() == name {
		return a.Dotfiles, nil
	}
	return nil, NewPermanentError("unknown tool", nil).
		WithCode(ErrCodeUnknownAdapter).
		WithResource(name)
}

// ManagerNames returns the registered package manager names in sorted order.
func (a *Adapters) ManagerNames() []string {
	names := make([]string, 0, len(a.Packages))
	for name := range a.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResultRecorder observes every recorded execution result.
type ResultRecorder interface {
	RecordResult(result ExecutionResult)
}
