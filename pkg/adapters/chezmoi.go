package adapters

import (
	"context"
	"os"
	"strings"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Chezmoi applies dotfiles with chezmoi.
type Chezmoi struct {
	base
	goos string
}

// NewChezmoi returns the dotfile manager adapter.
func NewChezmoi(runner engine.Runner, goos string) *Chezmoi {
	return &Chezmoi{base: base{name: "chezmoi", binary: "chezmoi", runner: runner}, goos: goos}
}

func (c *Chezmoi) BootstrapInvocation() (engine.Invocation, error) {
	if c.goos == "windows" {
		return engine.Argv("winget", "install", "--id", "twpayne.chezmoi", "--exact", "--silent",
			"--accept-package-agreements", "--accept-source-agreements"), nil
	}
	return engine.Argv("sh", "-c", `sh -c "$(curl -fsLS get.chezmoi.io)" -- -b "$HOME/.local/bin"`), nil
}

// SourcePath returns the source directory if it exists.
func (c *Chezmoi) SourcePath(ctx context.Context, pc engine.PathContext) (string, bool) {
	out, err := c.query(ctx, pc, "chezmoi", "source-path")
	if err != nil {
		return "", false
	}
	path := strings.TrimSpace(out)
	if path == "" {
		return "", false
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}

// RemoteOrigin returns the origin URL of the source repository.
func (c *Chezmoi) RemoteOrigin(ctx context.Context, pc engine.PathContext) (string, bool) {
	out, err := c.query(ctx, pc, "chezmoi", "git", "--", "config", "--get", "remote.origin.url")
	if err != nil {
		return "", false
	}
	origin := strings.TrimSpace(out)
	return origin, origin != ""
}

// HasManagedTargets reports whether chezmoi manages any file.
func (c *Chezmoi) HasManagedTargets(ctx context.Context, pc engine.PathContext) (bool, error) {
	out, err := c.query(ctx, pc, "chezmoi", "managed", "--include=files")
	if err != nil {
		return false, err
	}
	return len(lines(out)) > 0, nil
}

func (c *Chezmoi) InitAndApplyInvocation(spec engine.DotfilesSpec) engine.Invocation {
	argv := []string{"chezmoi", "init", "--apply"}
	if spec.Branch != "" {
		argv = append(argv, "--branch", spec.Branch)
	}
	return engine.Argv(append(argv, spec.Repo)...)
}

func (c *Chezmoi) ApplyInvocation() engine.Invocation {
	return engine.Argv("chezmoi", "apply")
}
