package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bootkit/bootkit/pkg/engine"
)

func writeOSRelease(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write os-release: %v", err)
	}
	return path
}

func TestDetectPackageManager(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"ubuntu", "NAME=\"Ubuntu\"\nID=ubuntu\nID_LIKE=debian\n", engine.ManagerApt},
		{"debian derivative", "ID=\"kali\"\nID_LIKE=\"debian\"\n", engine.ManagerApt},
		{"arch", "NAME=\"Arch Linux\"\nID=arch\n", engine.ManagerPacman},
		{"fedora", "ID=fedora\nVERSION_ID=40\n", engine.ManagerDnf},
		{"rhel like", "ID=\"ol\"\nID_LIKE=\"fedora rhel\"\n", engine.ManagerDnf},
		{"comments", "# generated\n\nID='manjaro'\n", engine.ManagerPacman},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, err := DetectPackageManager(writeOSRelease(t, tt.content), "")
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if pm != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, pm)
			}
		})
	}
}

func TestDetectPackageManager_Failures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")

	if _, err := DetectPackageManager(missing, ""); !engine.IsPrerequisite(err) {
		t.Errorf("Expected prerequisite error for a missing file, got %v", err)
	}
	if _, err := DetectPackageManager(writeOSRelease(t, "ID=gentoo\n"), ""); !engine.IsPrerequisite(err) {
		t.Errorf("Expected prerequisite error for an unknown distribution, got %v", err)
	}

	pm, err := DetectPackageManager(missing, engine.ManagerPacman)
	if err != nil || pm != engine.ManagerPacman {
		t.Errorf("Expected override to win, got %s (err=%v)", pm, err)
	}
}

func TestResolvePackageManager(t *testing.T) {
	path := writeOSRelease(t, "ID=ubuntu\n")
	auto := &engine.Manifest{PackageManager: engine.ManagerAuto}

	resolved, err := ResolvePackageManager(auto, path, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resolved.PackageManager != engine.ManagerApt {
		t.Errorf("Expected apt, got %s", resolved.PackageManager)
	}
	if auto.PackageManager != engine.ManagerAuto {
		t.Error("Expected input manifest to be left unchanged")
	}

	scoop := &engine.Manifest{PackageManager: engine.ManagerScoop}
	if resolved, _ := ResolvePackageManager(scoop, "/nonexistent", ""); resolved.PackageManager != engine.ManagerScoop {
		t.Errorf("Expected explicit manager to be kept, got %s", resolved.PackageManager)
	}
	if resolved, _ := ResolvePackageManager(scoop, "/nonexistent", engine.ManagerWinget); resolved.PackageManager != engine.ManagerWinget {
		t.Errorf("Expected override to win, got %s", resolved.PackageManager)
	}
}
