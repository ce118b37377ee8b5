package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default level info, got %s", cfg.Logging.Level)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Keep != 100 {
		t.Errorf("Expected journal defaults, got %+v", cfg.Journal)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true); err == nil {
		t.Error("Expected error for a required missing file")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
package_manager: pacman
sudo: true
journal:
  keep: 5
policy:
  denied_packages: [telnet]
logging:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.PackageManager != "pacman" || !cfg.Sudo {
		t.Errorf("Expected pacman with sudo, got %q sudo=%v", cfg.PackageManager, cfg.Sudo)
	}
	if cfg.Journal.Keep != 5 || !cfg.Journal.Enabled {
		t.Errorf("Expected keep=5 with the journal still enabled, got %+v", cfg.Journal)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("Expected json format with default level, got %+v", cfg.Logging)
	}
	if len(cfg.Policy.DeniedPackages) != 1 || cfg.Policy.DeniedPackages[0] != "telnet" {
		t.Errorf("Expected denied telnet, got %v", cfg.Policy.DeniedPackages)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad manager", "package_manager: brew\n", "PackageManager"},
		{"bad level", "logging:\n  level: loud\n", "Level"},
		{"negative keep", "journal:\n  keep: -1\n", "Keep"},
		{"otlp without endpoint", "tracing:\n  exporter: otlp\n", "Endpoint"},
		{"not yaml", "journal: [\n", "unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write settings: %v", err)
			}
			_, err := Load(path, true)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOG_LEVEL":               "WARN",
		"BOOTKIT_PACKAGE_MANAGER": "dnf",
		"BOOTKIT_DENIED_PACKAGES": "telnet, ftp ,",
		"BOOTKIT_ALLOW_HTTP":      "true",
		"BOOTKIT_HISTORY_KEEP":    "7",
		"BOOTKIT_JOURNAL_ON":      "false",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected warn, got %s", cfg.Logging.Level)
	}
	if cfg.PackageManager != "dnf" {
		t.Errorf("Expected dnf, got %s", cfg.PackageManager)
	}
	if strings.Join(cfg.Policy.DeniedPackages, ",") != "telnet,ftp" {
		t.Errorf("Expected telnet,ftp, got %v", cfg.Policy.DeniedPackages)
	}
	if !cfg.Policy.AllowHTTP {
		t.Error("Expected allow_http to be set")
	}
	if cfg.Journal.Keep != 7 || cfg.Journal.Enabled {
		t.Errorf("Expected keep=7 with journal off, got %+v", cfg.Journal)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	for _, kv := range [][2]string{
		{"BOOTKIT_SUDO", "maybe"},
		{"BOOTKIT_HISTORY_KEEP", "ten"},
	} {
		lookup := func(k string) (string, bool) {
			if k == kv[0] {
				return kv[1], true
			}
			return "", false
		}
		cfg := Default()
		if err := cfg.ApplyEnv(lookup); err == nil {
			t.Errorf("Expected error for %s=%s", kv[0], kv[1])
		}
	}
}

func TestTelemetry(t *testing.T) {
	cfg := Default()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Metrics.TextfilePath = "/tmp/bootkit.prom"

	tc := cfg.Telemetry("1.2.3")
	if err := tc.Validate(); err != nil {
		t.Fatalf("Expected valid telemetry config, got: %v", err)
	}
	if tc.ServiceVersion != "1.2.3" || tc.Tracing.Exporter != "stdout" || tc.Metrics.TextfilePath != "/tmp/bootkit.prom" {
		t.Errorf("Unexpected telemetry config: %+v", tc)
	}
	if tc.Metrics.Namespace != "bootkit" {
		t.Errorf("Expected bootkit namespace, got %s", tc.Metrics.Namespace)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := DefaultPath(); got != filepath.Join("/custom/config", "bootkit", "config.yaml") {
		t.Errorf("Unexpected default path %s", got)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(data), "journal:") {
		t.Errorf("Expected journal section, got:\n%s", data)
	}
}
