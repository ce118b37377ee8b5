package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bootkit/bootkit/pkg/engine"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

const windowsManifest = `{
	// primary tools
	"packageManager": "scoop",
	"scoopBuckets": ["extras", {"name": "nerd-fonts", "url": "https://github.com/matthewjberger/scoop-nerd-fonts"}],
	"scoopTools": ["git", "extras/wezterm", {"name": "ripgrep"}],
	"wingetPackages": ["Microsoft.PowerToys"],
	"powershellModules": ["PSReadLine"],
	"fonts": ["nerd-fonts/JetBrainsMono-NF"],
	"miseRuntimes": ["node@20", {"name": "python", "version": "3.12"}, "rust"],
	"environment": {"VISUAL": "code", "EDITOR": "nvim"},
	"dotfiles": {"repo": "octo/dotfiles", "branch": "main"},
	"optional": {
		"scoopTools": ["extras/obsidian"],
		"miseRuntimes": ["go"],
	},
	"$schema": "ignored by the loader",
}`

func TestLoad_Windows(t *testing.T) {
	path := writeManifest(t, "windows.jsonc", windowsManifest)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if m.Target != "windows" {
		t.Errorf("Expected target windows, got %s", m.Target)
	}
	if m.Path != path {
		t.Errorf("Expected path %s, got %s", path, m.Path)
	}

	if len(m.Sources) != 2 || m.Sources[1].URL == "" || m.Sources[0].Manager != engine.ManagerScoop {
		t.Errorf("Unexpected sources: %+v", m.Sources)
	}

	expected := []engine.PackageSpec{
		{Name: "git"},
		{Name: "wezterm", Source: "extras"},
		{Name: "ripgrep"},
		{Name: "Microsoft.PowerToys", Manager: engine.ManagerWinget},
		{Name: "PSReadLine", Manager: engine.ManagerPSGallery},
		{Name: "JetBrainsMono-NF", Source: "nerd-fonts"},
	}
	if len(m.Packages) != len(expected) {
		t.Fatalf("Expected %d packages, got %d: %+v", len(expected), len(m.Packages), m.Packages)
	}
	for i, want := range expected {
		if m.Packages[i] != want {
			t.Errorf("Package %d: expected %+v, got %+v", i, want, m.Packages[i])
		}
	}

	runtimes := []string{"node@20", "python@3.12", "rust@latest"}
	for i, want := range runtimes {
		if m.Runtimes[i].String() != want {
			t.Errorf("Runtime %d: expected %s, got %s", i, want, m.Runtimes[i])
		}
	}
	if m.Runtimes[2].Command != "rustc" {
		t.Errorf("Expected rust command rustc, got %s", m.Runtimes[2].Command)
	}

	if len(m.Environment) != 2 || m.Environment[0].Key != "EDITOR" || m.Environment[1].Key != "VISUAL" {
		t.Errorf("Expected environment sorted by key, got %+v", m.Environment)
	}
	if m.Dotfiles == nil || m.Dotfiles.Repo != "octo/dotfiles" || m.Dotfiles.Branch != "main" {
		t.Errorf("Unexpected dotfiles: %+v", m.Dotfiles)
	}
	if m.Optional == nil || len(m.Optional.Packages) != 1 || len(m.Optional.Runtimes) != 1 {
		t.Errorf("Unexpected optional section: %+v", m.Optional)
	}
}

func TestLoad_LegacyPackagesFallback(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "only legacy key",
			content:  `{"packageManager": "pacman", "packages": ["git", "ripgrep"]}`,
			expected: []string{"git", "ripgrep"},
		},
		{
			name:     "empty system list falls back",
			content:  `{"packageManager": "pacman", "systemPackages": [], "packages": ["git"]}`,
			expected: []string{"git"},
		},
		{
			name:     "system list wins",
			content:  `{"packageManager": "pacman", "systemPackages": ["fd"], "packages": ["git"]}`,
			expected: []string{"fd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(writeManifest(t, "arch.json", tt.content))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(m.Packages) != len(tt.expected) {
				t.Fatalf("Expected %v, got %+v", tt.expected, m.Packages)
			}
			for i, name := range tt.expected {
				if m.Packages[i].Name != name {
					t.Errorf("Expected %s, got %s", name, m.Packages[i].Name)
				}
			}
		})
	}
}

func TestLoad_LegacyKeyPlansIdentically(t *testing.T) {
	legacy, err := Load(writeManifest(t, "arch.json", `{"packageManager": "pacman", "packages": ["git", "ripgrep"]}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	current, err := Load(writeManifest(t, "arch.json", `{"packageManager": "pacman", "systemPackages": ["git", "ripgrep"]}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	host := engine.NewHostState()
	host.Managers[engine.ManagerPacman] = engine.ManagerState{
		Available: true,
		Packages:  map[string]string{"git": ""},
	}
	planner := engine.NewPlanner(nil)
	a, err := planner.Plan(legacy, host, engine.PlanOptions{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := planner.Plan(current, host, engine.PlanOptions{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("Expected identical plans, got %s and %s:\n%v\n%v", a.ID, b.ID, a.Actions, b.Actions)
	}
	if len(a.Actions) != 2 {
		t.Errorf("Expected 2 actions, got %v", a.Actions)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"not json", `packageManager: scoop`, engine.ErrCodeManifestMalformed},
		{"truncated", `{"packageManager": "scoop"`, engine.ErrCodeManifestMalformed},
		{"empty", `  // nothing here`, engine.ErrCodeManifestMalformed},
		{"missing package manager", `{"scoopTools": ["git"]}`, engine.ErrCodeManifestInvalid},
		{"unknown package manager", `{"packageManager": "brew"}`, engine.ErrCodeManifestInvalid},
		{"numeric element", `{"packageManager": "scoop", "scoopTools": [42]}`, engine.ErrCodeManifestInvalid},
		{"object without name", `{"packageManager": "scoop", "scoopTools": [{"source": "extras"}]}`, engine.ErrCodeManifestInvalid},
		{"duplicate", `{"packageManager": "scoop", "scoopTools": ["git", "Git"]}`, engine.ErrCodeManifestInvalid},
		{"duplicate with source", `{"packageManager": "scoop", "scoopTools": ["git", "extras/git"]}`, engine.ErrCodeManifestInvalid},
		{"empty name", `{"packageManager": "scoop", "scoopTools": [""]}`, engine.ErrCodeManifestInvalid},
		{"dotfiles without repo", `{"packageManager": "scoop", "dotfiles": {"branch": "main"}}`, engine.ErrCodeManifestInvalid},
		{"non-string env", `{"packageManager": "scoop", "environment": {"N": 1}}`, engine.ErrCodeManifestInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, "m.json", tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !engine.IsManifestError(err) {
				t.Errorf("Expected manifest error, got %v", err)
			}
			if !engine.HasCode(err, tt.code) {
				t.Errorf("Expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !engine.HasCode(err, engine.ErrCodeManifestNotFound) {
		t.Errorf("Expected MANIFEST_NOT_FOUND, got %v", err)
	}
}

func TestLoad_Unreadable(t *testing.T) {
	_, err := Load(t.TempDir())
	if !engine.HasCode(err, engine.ErrCodeManifestUnreadable) {
		t.Errorf("Expected MANIFEST_UNREADABLE for a directory, got %v", err)
	}
	if !engine.IsManifestError(err) {
		t.Errorf("Expected a manifest error, got %v", err)
	}
}

func TestLoad_CrossListDuplicatesCollapse(t *testing.T) {
	m, err := Load(writeManifest(t, "m.json", `{
		"packageManager": "scoop",
		"systemPackages": ["git"],
		"scoopTools": ["extras/git"],
		"fonts": ["git"]
	}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(m.Packages) != 1 {
		t.Errorf("Expected one package, got %+v", m.Packages)
	}
}
