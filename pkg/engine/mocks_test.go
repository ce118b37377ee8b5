package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Mock implementations for testing

type mockPackageManager struct {
	name      string
	canonical string
	installed map[string]string
	sources   map[string]string
	listErr   error
	noInstall bool
}

func (m *mockPackageManager) Name() string            { return m.name }
func (m *mockPackageManager) Binary() string          { return m.name }
func (m *mockPackageManager) CanonicalSource() string { return m.canonical }

func (m *mockPackageManager) BootstrapInvocation() (Invocation, error) {
	if m.noInstall {
		return Invocation{}, errors.New(m.name + " cannot be installed automatically")
	}
	return Argv("bootstrap-"+m.name), nil
}

func (m *mockPackageManager) ListInstalled(ctx context.Context, pc PathContext) (map[string]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.installed, nil
}

func (m *mockPackageManager) IsPackageInstalled(ctx context.Context, pc PathContext, name string) (bool, error) {
	_, ok := m.installed[name]
	return ok, m.listErr
}

func (m *mockPackageManager) ListSources(ctx context.Context, pc PathContext) (map[string]string, error) {
	return m.sources, nil
}

func (m *mockPackageManager) InstallInvocation(pkg PackageSpec) Invocation {
	return Argv(m.name, "install", pkg.QualifiedName())
}

func (m *mockPackageManager) AddSourceInvocation(src SourceSpec) Invocation {
	return Argv(m.name, "bucket", "add", src.Name, src.URL)
}

type mockRuntimeManager struct{}

func (m *mockRuntimeManager) Name() string   { return "mise" }
func (m *mockRuntimeManager) Binary() string { return "mise" }

func (m *mockRuntimeManager) BootstrapInvocation() (Invocation, error) {
	return Argv("bootstrap-mise"), nil
}

func (m *mockRuntimeManager) InstallInvocation(rt RuntimeSpec) Invocation {
	return Argv("mise", "use", "--global", rt.String()).Then(m.ShimsInvocation())
}

func (m *mockRuntimeManager) ShimsInvocation() Invocation {
	return Argv("mise", "reshim")
}

func (m *mockRuntimeManager) ResolveCommandPath(pc PathContext, command string) (string, bool) {
	return pc.LookPath(command)
}

type mockDotfileManager struct{}

func (m *mockDotfileManager) Name() string   { return "chezmoi" }
func (m *mockDotfileManager) Binary() string { return "chezmoi" }

func (m *mockDotfileManager) BootstrapInvocation() (Invocation, error) {
	return Argv("bootstrap-chezmoi"), nil
}

func (m *mockDotfileManager) SourcePath(ctx context.Context, pc PathContext) (string, bool) {
	return "", false
}

func (m *mockDotfileManager) RemoteOrigin(ctx context.Context, pc PathContext) (string, bool) {
	return "", false
}

func (m *mockDotfileManager) HasManagedTargets(ctx context.Context, pc PathContext) (bool, error) {
	return false, nil
}

func (m *mockDotfileManager) InitAndApplyInvocation(spec DotfilesSpec) Invocation {
	return Argv("chezmoi", "init", "--apply", spec.Repo)
}

func (m *mockDotfileManager) ApplyInvocation() Invocation {
	return Argv("chezmoi", "apply")
}

type mockEnvStore struct {
	mu        sync.Mutex
	persisted PersistedEnv
	set       []EnvVarSpec
}

func (m *mockEnvStore) Name() string { return "env" }

func (m *mockEnvStore) Persisted() (PersistedEnv, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted, nil
}

func (m *mockEnvStore) SetInvocation(v EnvVarSpec) Invocation {
	return Invocation{Steps: []Step{{
		Label: "persist " + v.Key,
		Apply: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.set = append(m.set, v)
			return nil
		},
	}}}
}

type mockRunner struct {
	mu    sync.Mutex
	calls []Command
	exits map[string]int
}

func newMockRunner() *mockRunner {
	return &mockRunner{exits: make(map[string]int)}
}

func (m *mockRunner) fail(argv string, code int) {
	m.exits[argv] = code
}

func (m *mockRunner) Run(ctx context.Context, cmd Command) (*CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd)
	key := strings.Join(cmd.Argv, " ")
	if code, ok := m.exits[key]; ok {
		return &CommandResult{ExitCode: code, Stderr: "error: " + key + " failed"}, nil
	}
	return &CommandResult{}, nil
}

func (m *mockRunner) commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = strings.Join(c.Argv, " ")
	}
	return out
}

type mockRecorder struct {
	results []ExecutionResult
}

func (m *mockRecorder) RecordResult(r ExecutionResult) {
	m.results = append(m.results, r)
}

func newMockAdapters() (*Adapters, *mockEnvStore) {
	env := &mockEnvStore{}
	return &Adapters{
		Packages: map[string]PackageManager{
			ManagerScoop:  &mockPackageManager{name: ManagerScoop, canonical: "main"},
			ManagerWinget: &mockPackageManager{name: ManagerWinget, canonical: "winget", noInstall: true},
		},
		Runtime:  &mockRuntimeManager{},
		Dotfiles: &mockDotfileManager{},
		Env:      env,
	}, env
}

func scoopManifest(packages ...string) *Manifest {
	m := &Manifest{Target: "windows", PackageManager: ManagerScoop}
	for _, p := range packages {
		m.Packages = append(m.Packages, PackageSpec{Name: p})
	}
	return m
}

func hostWithScoop(installed map[string]string) *HostState {
	h := NewHostState()
	if installed == nil {
		installed = map[string]string{}
	}
	h.Managers[ManagerScoop] = ManagerState{
		Available: true,
		Packages:  installed,
		Sources:   map[string]string{},
	}
	h.Tools["mise"] = true
	h.Tools["chezmoi"] = true
	return h
}
