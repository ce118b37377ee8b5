package adapters

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bootkit/bootkit/pkg/engine"
)

type scriptedRunner struct {
	outputs map[string]*engine.CommandResult
	calls   []string
}

func (r *scriptedRunner) Run(ctx context.Context, cmd engine.Command) (*engine.CommandResult, error) {
	key := strings.Join(cmd.Argv, " ")
	r.calls = append(r.calls, key)
	if out, ok := r.outputs[key]; ok {
		return out, nil
	}
	return &engine.CommandResult{ExitCode: 127, Stderr: "command not found"}, nil
}

func TestScoop_ListInstalled(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]*engine.CommandResult{
		"scoop export": {Stdout: `{
			"buckets": [
				{"Name": "main", "Source": "https://github.com/ScoopInstaller/Main", "Manifests": 1300},
				{"Name": "extras", "Source": "https://github.com/ScoopInstaller/Extras"}
			],
			"apps": [
				{"Name": "git", "Source": "main", "Version": "2.43.0"},
				{"Name": "wezterm", "Source": "extras", "Version": "20240203"}
			]
		}`},
	}}
	scoop := NewScoop(runner)
	pc := engine.NewPathContext(nil)

	installed, err := scoop.ListInstalled(context.Background(), pc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if installed["git"] != "main" || installed["wezterm"] != "extras" {
		t.Errorf("Unexpected installed set: %v", installed)
	}

	sources, err := scoop.ListSources(context.Background(), pc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if sources["extras"] != "https://github.com/ScoopInstaller/Extras" {
		t.Errorf("Unexpected sources: %v", sources)
	}

	ok, err := scoop.IsPackageInstalled(context.Background(), pc, "Git")
	if err != nil || !ok {
		t.Errorf("Expected Git to be installed, got %v (err=%v)", ok, err)
	}
}

func TestScoop_ListInstalledUnavailable(t *testing.T) {
	scoop := NewScoop(&scriptedRunner{})

	installed, err := scoop.ListInstalled(context.Background(), engine.NewPathContext(nil))
	if err == nil {
		t.Fatal("Expected an error when scoop cannot be queried")
	}
	if installed != nil {
		t.Errorf("Expected no installed set on failure, got %v", installed)
	}
}

func TestInvocations(t *testing.T) {
	tests := []struct {
		name     string
		inv      engine.Invocation
		expected string
	}{
		{"scoop canonical", NewScoop(nil).InstallInvocation(engine.PackageSpec{Name: "git"}), "scoop install git"},
		{"scoop bucket", NewScoop(nil).InstallInvocation(engine.PackageSpec{Name: "wezterm", Source: "extras"}), "scoop install extras/wezterm"},
		{"scoop add bucket", NewScoop(nil).AddSourceInvocation(engine.SourceSpec{Name: "extras"}), "scoop bucket add extras"},
		{"apt sudo", NewApt(nil, true).InstallInvocation(engine.PackageSpec{Name: "ripgrep"}), "sudo apt-get install -y -q ripgrep"},
		{"pacman", NewPacman(nil, false).InstallInvocation(engine.PackageSpec{Name: "fd"}), "pacman -S --needed --noconfirm fd"},
		{"dnf repo", NewDnf(nil, false).InstallInvocation(engine.PackageSpec{Name: "gh", Source: "gh-cli"}), "dnf install -y --repo gh-cli gh"},
		{"winget", NewWinget(nil, "").InstallInvocation(engine.PackageSpec{Name: "Git.Git"}),
			"winget install --id Git.Git --exact --silent --accept-package-agreements --accept-source-agreements --disable-interactivity"},
		{"mise", NewMise(nil, "linux", "").InstallInvocation(engine.ParseRuntime("node@20")), "mise use --global --yes node@20 && mise reshim"},
		{"chezmoi init", NewChezmoi(nil, "linux").InitAndApplyInvocation(engine.DotfilesSpec{Repo: "octo", Branch: "main"}), "chezmoi init --apply --branch main octo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPSGallery_InstallInvocation(t *testing.T) {
	inv := NewPSGallery(nil, "").InstallInvocation(engine.PackageSpec{Name: "posh-git"})
	argv := inv.Steps[0].Argv

	if argv[0] != "pwsh" || argv[len(argv)-2] != "-Command" {
		t.Fatalf("Unexpected argv %v", argv)
	}
	script := argv[len(argv)-1]
	expected := "Install-Module -Name 'posh-git' -Repository 'PSGallery' -Scope CurrentUser -Force -AllowClobber"
	if script != expected {
		t.Errorf("Expected %q, got %q", expected, script)
	}
	if got := psQuote("it's"); got != "'it''s'" {
		t.Errorf("Expected doubled quote, got %s", got)
	}
}

func TestSystemManager_Bootstrap(t *testing.T) {
	for _, pm := range []engine.PackageManager{NewApt(nil, false), NewPacman(nil, false), NewDnf(nil, false)} {
		if _, err := pm.BootstrapInvocation(); err == nil {
			t.Errorf("Expected %s bootstrap to be refused", pm.Name())
		}
	}
}

func TestPacman_AddSourceUnsupported(t *testing.T) {
	inv := NewPacman(nil, false).AddSourceInvocation(engine.SourceSpec{Name: "chaotic", URL: "https://example.org"})
	if len(inv.Steps) != 1 || inv.Steps[0].Apply == nil {
		t.Fatalf("Expected a failing in-process step, got %v", inv)
	}
	if err := inv.Steps[0].Apply(context.Background()); err == nil {
		t.Error("Expected pacman source registration to fail")
	}
}

func TestParseDpkgQuery(t *testing.T) {
	out := "ii \tgit\nrc \told-package\nii \tripgrep\n\n"
	installed := parseDpkgQuery(out)

	if len(installed) != 2 {
		t.Fatalf("Expected 2 packages, got %v", installed)
	}
	if _, ok := installed["old-package"]; ok {
		t.Error("Expected removed package to be ignored")
	}
}

func TestParseWinget(t *testing.T) {
	export := []byte(`{
		"$schema": "https://aka.ms/winget-packages.schema.2.0.json",
		"Sources": [{
			"Packages": [{"PackageIdentifier": "Git.Git"}, {"PackageIdentifier": "Microsoft.PowerShell"}],
			"SourceDetails": {"Name": "winget", "Argument": "https://cdn.winget.microsoft.com/cache"}
		}]
	}`)
	installed, err := parseWingetExport(export)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if installed["Git.Git"] != "winget" || len(installed) != 2 {
		t.Errorf("Unexpected installed set: %v", installed)
	}

	sources, err := parseWingetSources(`{"Arg":"https://cdn.winget.microsoft.com/cache","Name":"winget","Type":"Microsoft.PreIndexed.Package"}
{"Arg":"https://storeedgefd.dsx.mp.microsoft.com/v9.0","Name":"msstore","Type":"Microsoft.Rest"}
`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(sources) != 2 || sources["msstore"] == "" {
		t.Errorf("Unexpected sources: %v", sources)
	}
}

func TestDecodeOneOrMany(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{`{"Name":"posh-git","Repository":"PSGallery"}`, 1},
		{`[{"Name":"a","Repository":"PSGallery"},{"Name":"b","Repository":"PSGallery"}]`, 2},
	}

	for _, tt := range tests {
		var modules []psModule
		if err := decodeOneOrMany([]byte(tt.input), &modules); err != nil {
			t.Fatalf("decodeOneOrMany(%q) error: %v", tt.input, err)
		}
		if len(modules) != tt.expected {
			t.Errorf("decodeOneOrMany(%q) = %d modules, expected %d", tt.input, len(modules), tt.expected)
		}
	}
}

func TestEnvFile_SetAndPersisted(t *testing.T) {
	dir := t.TempDir()
	binDir := filepath.Join(dir, "bin")
	if err := os.Mkdir(binDir, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	store := NewEnvFile(filepath.Join(dir, "config", "env.sh"), "linux",
		[]string{binDir, filepath.Join(dir, "missing")})

	for _, v := range []engine.EnvVarSpec{
		{Key: "EDITOR", Value: "vim"},
		{Key: "GREETING", Value: "it's a \"test\" $HOME"},
		{Key: "EDITOR", Value: "nvim"},
	} {
		for _, step := range store.SetInvocation(v).Steps {
			if err := step.Apply(context.Background()); err != nil {
				t.Fatalf("Failed to persist %s: %v", v.Key, err)
			}
		}
	}

	persisted, err := store.Persisted()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if persisted.Vars["EDITOR"] != "nvim" {
		t.Errorf("Expected EDITOR=nvim, got %q", persisted.Vars["EDITOR"])
	}
	if persisted.Vars["GREETING"] != "it's a \"test\" $HOME" {
		t.Errorf("Expected value to survive quoting, got %q", persisted.Vars["GREETING"])
	}
	if len(persisted.PathDirs) != 1 || persisted.PathDirs[0] != binDir {
		t.Errorf("Expected only existing dirs, got %v", persisted.PathDirs)
	}

	data, _ := os.ReadFile(store.Path())
	if strings.Count(string(data), "EDITOR") != 1 {
		t.Errorf("Expected EDITOR to be written once, got:\n%s", data)
	}
}

func TestEnvFile_MissingFile(t *testing.T) {
	store := NewEnvFile(filepath.Join(t.TempDir(), "env.sh"), "linux", nil)
	persisted, err := store.Persisted()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(persisted.Vars) != 0 {
		t.Errorf("Expected no variables, got %v", persisted.Vars)
	}
}

func TestEnvFile_WindowsAlsoUsesSetx(t *testing.T) {
	inv := NewEnvFile("env.sh", "windows", nil).SetInvocation(engine.EnvVarSpec{Key: "EDITOR", Value: "nvim"})
	if len(inv.Steps) != 2 || strings.Join(inv.Steps[1].Argv, " ") != "setx EDITOR nvim" {
		t.Errorf("Expected a setx step, got %s", inv)
	}
}

func TestMise_ResolveCommandPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not used on windows")
	}
	shims := t.TempDir()
	if err := os.WriteFile(filepath.Join(shims, "node"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to write shim: %v", err)
	}
	mise := NewMise(nil, "linux", shims)

	path, ok := mise.ResolveCommandPath(engine.NewPathContext([]string{"PATH=/nonexistent"}), "node")
	if !ok || path != filepath.Join(shims, "node") {
		t.Errorf("Expected shim to resolve, got %q (found=%v)", path, ok)
	}
	if _, ok := mise.ResolveCommandPath(engine.NewPathContext(nil), "python3-missing"); ok {
		t.Error("Expected missing command not to resolve")
	}
}

func TestChezmoi_State(t *testing.T) {
	source := t.TempDir()
	runner := &scriptedRunner{outputs: map[string]*engine.CommandResult{
		"chezmoi source-path": {Stdout: source + "\n"},
		"chezmoi git -- config --get remote.origin.url": {Stdout: "https://github.com/octo/dotfiles.git\n"},
		"chezmoi managed --include=files":               {Stdout: ".bashrc\n.gitconfig\n"},
	}}
	c := NewChezmoi(runner, "linux")
	pc := engine.NewPathContext(nil)
	ctx := context.Background()

	if path, ok := c.SourcePath(ctx, pc); !ok || path != source {
		t.Errorf("Expected source path %s, got %q", source, path)
	}
	if origin, ok := c.RemoteOrigin(ctx, pc); !ok || origin != "https://github.com/octo/dotfiles.git" {
		t.Errorf("Unexpected origin %q", origin)
	}
	if has, err := c.HasManagedTargets(ctx, pc); err != nil || !has {
		t.Errorf("Expected managed targets, got %v (err=%v)", has, err)
	}
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	runner := &ExecRunner{}
	ctx := context.Background()

	out, err := runner.Run(ctx, engine.Command{Argv: []string{"sh", "-c", "echo hello; echo oops >&2; exit 3"}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", out.ExitCode)
	}
	if strings.TrimSpace(out.Stdout) != "hello" || strings.TrimSpace(out.Stderr) != "oops" {
		t.Errorf("Unexpected output %q / %q", out.Stdout, out.Stderr)
	}

	if _, err := runner.Run(ctx, engine.Command{Argv: []string{"bootkit-no-such-command"}}); err == nil {
		t.Error("Expected an error for a missing executable")
	}
	if _, err := runner.Run(ctx, engine.Command{}); err == nil {
		t.Error("Expected an error for an empty command")
	}
}
