package adapters

import (
	"github.com/bootkit/bootkit/pkg/engine"
)

// Mise installs language runtimes through the mise version manager.
type Mise struct {
	base
	goos     string
	shimsDir string
}

// NewMise returns the runtime manager adapter. shimsDir is where mise
// materializes executables for installed runtimes.
func NewMise(runner engine.Runner, goos, shimsDir string) *Mise {
	return &Mise{
		base:     base{name: "mise", binary: "mise", runner: runner},
		goos:     goos,
		shimsDir: shimsDir,
	}
}

// ShimsDir returns the shim directory.
func (m *Mise) ShimsDir() string { return m.shimsDir }

func (m *Mise) BootstrapInvocation() (engine.Invocation, error) {
	if m.goos == "windows" {
		return engine.Argv("winget", "install", "--id", "jdx.mise", "--exact", "--silent",
			"--accept-package-agreements", "--accept-source-agreements"), nil
	}
	return engine.Argv("sh", "-c", "curl -fsSL https://mise.run | sh"), nil
}

// InstallInvocation activates the runtime globally and regenerates shims so
// the runtime's executables resolve in new processes.
func (m *Mise) InstallInvocation(rt engine.RuntimeSpec) engine.Invocation {
	return engine.Argv("mise", "use", "--global", "--yes", rt.String()).Then(m.ShimsInvocation())
}

func (m *Mise) ShimsInvocation() engine.Invocation {
	return engine.Argv("mise", "reshim")
}

// ResolveCommandPath looks on the path first and then in the shim directory,
// which may not be on the path of the current session yet.
func (m *Mise) ResolveCommandPath(pc engine.PathContext, command string) (string, bool) {
	if path, ok := pc.LookPath(command); ok {
		return path, true
	}
	if m.shimsDir == "" {
		return "", false
	}
	return engine.NewPathContext([]string{"PATH=" + m.shimsDir}).LookPath(command)
}
