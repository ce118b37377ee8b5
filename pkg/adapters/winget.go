package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Winget manages packages through the Windows Package Manager.
type Winget struct {
	base
	tempDir string
}

// NewWinget returns the winget adapter. Exports are written below tempDir.
func NewWinget(runner engine.Runner, tempDir string) *Winget {
	return &Winget{
		base:    base{name: engine.ManagerWinget, binary: "winget", runner: runner},
		tempDir: tempDir,
	}
}

type wingetExport struct {
	Sources []struct {
		Packages []struct {
			PackageIdentifier string `json:"PackageIdentifier"`
		} `json:"Packages"`
		SourceDetails struct {
			Name     string `json:"Name"`
			Argument string `json:"Argument"`
		} `json:"SourceDetails"`
	} `json:"Sources"`
}

type wingetSource struct {
	Name string `json:"Name"`
	Arg  string `json:"Arg"`
}

func (w *Winget) CanonicalSource() string { return "winget" }

func (w *Winget) BootstrapInvocation() (engine.Invocation, error) {
	return engine.Invocation{}, errors.New("winget ships with App Installer; install it from the Microsoft Store")
}

// ListInstalled exports installed packages to a temporary file, since winget
// only produces structured output through export.
func (w *Winget) ListInstalled(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	dir, err := os.MkdirTemp(w.tempDir, "bootkit-winget-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "export.json")
	if _, err := w.query(ctx, pc, "winget", "export", "--output", path,
		"--accept-source-agreements", "--disable-interactivity"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read winget export: %w", err)
	}
	return parseWingetExport(data)
}

func parseWingetExport(data []byte) (map[string]string, error) {
	var export wingetExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse winget export: %w", err)
	}
	installed := make(map[string]string)
	for _, src := range export.Sources {
		for _, pkg := range src.Packages {
			installed[pkg.PackageIdentifier] = src.SourceDetails.Name
		}
	}
	return installed, nil
}

func (w *Winget) IsPackageInstalled(ctx context.Context, pc engine.PathContext, name string) (bool, error) {
	out, err := w.runner.Run(ctx, engine.Command{
		Argv: []string{"winget", "list", "--id", name, "--exact", "--accept-source-agreements", "--disable-interactivity"},
		Env:  pc.Environ(),
	})
	if err != nil {
		return false, err
	}
	return out.ExitCode == 0 && strings.Contains(strings.ToLower(out.Stdout), strings.ToLower(name)), nil
}

// ListSources reads `winget source export`, which prints one JSON object per source.
func (w *Winget) ListSources(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	out, err := w.query(ctx, pc, "winget", "source", "export")
	if err != nil {
		return nil, err
	}
	return parseWingetSources(out)
}

func parseWingetSources(out string) (map[string]string, error) {
	sources := make(map[string]string)
	dec := json.NewDecoder(strings.NewReader(out))
	for {
		var src wingetSource
		err := dec.Decode(&src)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse winget sources: %w", err)
		}
		sources[src.Name] = src.Arg
	}
	return sources, nil
}

func (w *Winget) InstallInvocation(pkg engine.PackageSpec) engine.Invocation {
	argv := []string{"winget", "install", "--id", pkg.Name, "--exact", "--silent",
		"--accept-package-agreements", "--accept-source-agreements", "--disable-interactivity"}
	if pkg.Source != "" {
		argv = append(argv, "--source", pkg.Source)
	}
	return engine.Argv(argv...)
}

func (w *Winget) AddSourceInvocation(src engine.SourceSpec) engine.Invocation {
	if src.URL == "" {
		return unsupported("winget source add "+src.Name, fmt.Errorf("winget source %q needs a URL", src.Name))
	}
	return engine.Argv("winget", "source", "add", "--name", src.Name, "--arg", src.URL, "--accept-source-agreements")
}
