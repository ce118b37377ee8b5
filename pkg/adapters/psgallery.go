package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bootkit/bootkit/pkg/engine"
)

// PSGallery installs PowerShell modules.
type PSGallery struct {
	base
}

// NewPSGallery returns the PowerShell module adapter using the given shell
// binary ("pwsh" or "powershell").
func NewPSGallery(runner engine.Runner, shell string) *PSGallery {
	if shell == "" {
		shell = "pwsh"
	}
	return &PSGallery{base: base{name: engine.ManagerPSGallery, binary: shell, runner: runner}}
}

type psModule struct {
	Name       string `json:"Name"`
	Repository string `json:"Repository"`
}

type psRepository struct {
	Name           string `json:"Name"`
	SourceLocation string `json:"SourceLocation"`
}

func (p *PSGallery) CanonicalSource() string { return "PSGallery" }

func (p *PSGallery) BootstrapInvocation() (engine.Invocation, error) {
	return engine.Invocation{}, fmt.Errorf("%s must be installed before PowerShell modules can be managed", p.binary)
}

func (p *PSGallery) command(script string) []string {
	return []string{p.binary, "-NoProfile", "-NonInteractive", "-Command", script}
}

func (p *PSGallery) ListInstalled(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	out, err := p.query(ctx, pc, p.command(
		"Get-InstalledModule | Select-Object Name,Repository | ConvertTo-Json -Compress")...)
	if err != nil {
		return nil, err
	}
	var modules []psModule
	if err := decodeOneOrMany([]byte(out), &modules); err != nil {
		return nil, fmt.Errorf("failed to parse installed modules: %w", err)
	}
	installed := make(map[string]string, len(modules))
	for _, m := range modules {
		installed[m.Name] = m.Repository
	}
	return installed, nil
}

func (p *PSGallery) IsPackageInstalled(ctx context.Context, pc engine.PathContext, name string) (bool, error) {
	out, err := p.query(ctx, pc, p.command(
		fmt.Sprintf("@(Get-InstalledModule -Name %s -ErrorAction SilentlyContinue).Count", psQuote(name)))...)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "0", nil
}

func (p *PSGallery) ListSources(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	out, err := p.query(ctx, pc, p.command(
		"Get-PSRepository | Select-Object Name,SourceLocation | ConvertTo-Json -Compress")...)
	if err != nil {
		return nil, err
	}
	var repos []psRepository
	if err := decodeOneOrMany([]byte(out), &repos); err != nil {
		return nil, fmt.Errorf("failed to parse repositories: %w", err)
	}
	sources := make(map[string]string, len(repos))
	for _, r := range repos {
		sources[r.Name] = r.SourceLocation
	}
	return sources, nil
}

func (p *PSGallery) InstallInvocation(pkg engine.PackageSpec) engine.Invocation {
	repo := pkg.Source
	if repo == "" {
		repo = p.CanonicalSource()
	}
	return engine.Argv(p.command(fmt.Sprintf(
		"Install-Module -Name %s -Repository %s -Scope CurrentUser -Force -AllowClobber",
		psQuote(pkg.Name), psQuote(repo)))...)
}

func (p *PSGallery) AddSourceInvocation(src engine.SourceSpec) engine.Invocation {
	if src.URL == "" {
		return unsupported("Register-PSRepository "+src.Name,
			errors.New("a PowerShell repository needs a source location"))
	}
	return engine.Argv(p.command(fmt.Sprintf(
		"Register-PSRepository -Name %s -SourceLocation %s -InstallationPolicy Trusted",
		psQuote(src.Name), psQuote(src.URL)))...)
}

// decodeOneOrMany decodes ConvertTo-Json output, which is a bare object for a
// single item, an array for several and empty for none.
func decodeOneOrMany[T any](data []byte, out *[]T) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*out = nil
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, out)
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*out = []T{one}
	return nil
}

// psQuote renders s as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
