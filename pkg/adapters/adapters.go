// Package adapters implements the closed set of external tool adapters:
// package managers (scoop, winget, apt, pacman, dnf, psgallery), the mise
// runtime manager, the chezmoi dotfile manager and the env file store.
//
// Adapters never run mutating commands themselves. They describe installs as
// engine.Invocation values and leave dispatch to the executor; only the
// read-only queries used by the probe are run directly.
package adapters

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Options selects and configures the adapter set.
type Options struct {
	// Runner executes commands. Required.
	Runner engine.Runner

	// GOOS defaults to runtime.GOOS.
	GOOS string

	// Home defaults to the user's home directory.
	Home string

	// EnvFile overrides the persisted environment file location.
	EnvFile string

	// PowerShell is the shell used for PowerShell modules; defaults to "pwsh".
	PowerShell string

	// Sudo prefixes system package manager installs with sudo.
	Sudo bool
}

func (o Options) withDefaults() Options {
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	if o.Home == "" {
		o.Home, _ = os.UserHomeDir()
	}
	if o.EnvFile == "" {
		o.EnvFile = filepath.Join(o.Home, ".config", "bootkit", "env.sh")
	}
	return o
}

// New builds the adapter set for the current platform.
func New(opts Options) *engine.Adapters {
	opts = opts.withDefaults()
	mise := NewMise(opts.Runner, opts.GOOS, MiseShimsDir(opts.GOOS, opts.Home))

	return &engine.Adapters{
		Packages: map[string]engine.PackageManager{
			engine.ManagerScoop:     NewScoop(opts.Runner),
			engine.ManagerWinget:    NewWinget(opts.Runner, ""),
			engine.ManagerPSGallery: NewPSGallery(opts.Runner, opts.PowerShell),
			engine.ManagerApt:       NewApt(opts.Runner, opts.Sudo),
			engine.ManagerPacman:    NewPacman(opts.Runner, opts.Sudo),
			engine.ManagerDnf:       NewDnf(opts.Runner, opts.Sudo),
		},
		Runtime:  mise,
		Dotfiles: NewChezmoi(opts.Runner, opts.GOOS),
		Env:      NewEnvFile(opts.EnvFile, opts.GOOS, InstallDirs(opts.GOOS, opts.Home)),
	}
}

// MiseShimsDir returns where mise puts runtime shims.
func MiseShimsDir(goos, home string) string {
	if goos == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "mise", "shims")
		}
		return filepath.Join(home, "AppData", "Local", "mise", "shims")
	}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "mise", "shims")
	}
	return filepath.Join(home, ".local", "share", "mise", "shims")
}

// InstallDirs lists the directories installers put executables into,
// in the order they take precedence on the path.
func InstallDirs(goos, home string) []string {
	dirs := []string{
		MiseShimsDir(goos, home),
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, ".cargo", "bin"),
	}
	if goos == "windows" {
		dirs = append(dirs,
			filepath.Join(home, "scoop", "shims"),
			filepath.Join(home, "AppData", "Local", "Microsoft", "WindowsApps"),
		)
	}
	return dirs
}
