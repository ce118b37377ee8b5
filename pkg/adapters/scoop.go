package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Scoop manages command-line tools on Windows hosts.
type Scoop struct {
	base
}

// NewScoop returns the scoop adapter.
func NewScoop(runner engine.Runner) *Scoop {
	return &Scoop{base: base{name: engine.ManagerScoop, binary: "scoop", runner: runner}}
}

// scoopExport is the subset of `scoop export` output that is read.
type scoopExport struct {
	Buckets []struct {
		Name   string `json:"Name"`
		Source string `json:"Source"`
	} `json:"buckets"`
	Apps []struct {
		Name   string `json:"Name"`
		Source string `json:"Source"`
	} `json:"apps"`
}

func (s *Scoop) CanonicalSource() string { return "main" }

func (s *Scoop) BootstrapInvocation() (engine.Invocation, error) {
	return engine.Argv("powershell", "-NoProfile", "-ExecutionPolicy", "RemoteSigned",
		"-Command", "Invoke-RestMethod -Uri https://get.scoop.sh | Invoke-Expression"), nil
}

func (s *Scoop) export(ctx context.Context, pc engine.PathContext) (*scoopExport, error) {
	out, err := s.query(ctx, pc, "scoop", "export")
	if err != nil {
		return nil, err
	}
	return parseScoopExport(out)
}

func parseScoopExport(out string) (*scoopExport, error) {
	var export scoopExport
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &export); err != nil {
		return nil, fmt.Errorf("failed to parse scoop export: %w", err)
	}
	return &export, nil
}

// ListInstalled maps installed apps to the bucket they were installed from.
func (s *Scoop) ListInstalled(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	export, err := s.export(ctx, pc)
	if err != nil {
		return nil, err
	}
	installed := make(map[string]string, len(export.Apps))
	for _, app := range export.Apps {
		installed[app.Name] = app.Source
	}
	return installed, nil
}

func (s *Scoop) IsPackageInstalled(ctx context.Context, pc engine.PathContext, name string) (bool, error) {
	installed, err := s.ListInstalled(ctx, pc)
	if err != nil {
		return false, err
	}
	for app := range installed {
		if strings.EqualFold(app, name) {
			return true, nil
		}
	}
	return false, nil
}

// ListSources maps bucket names to their repository URLs.
func (s *Scoop) ListSources(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	export, err := s.export(ctx, pc)
	if err != nil {
		return nil, err
	}
	sources := make(map[string]string, len(export.Buckets))
	for _, b := range export.Buckets {
		sources[b.Name] = b.Source
	}
	return sources, nil
}

func (s *Scoop) InstallInvocation(pkg engine.PackageSpec) engine.Invocation {
	return engine.Argv("scoop", "install", pkg.QualifiedName())
}

func (s *Scoop) AddSourceInvocation(src engine.SourceSpec) engine.Invocation {
	if src.URL == "" {
		return engine.Argv("scoop", "bucket", "add", src.Name)
	}
	return engine.Argv("scoop", "bucket", "add", src.Name, src.URL)
}
