package probe

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bootkit/bootkit/pkg/engine"
)

// DefaultOSReleasePath is the well-known distribution identification file.
const DefaultOSReleasePath = "/etc/os-release"

// distroManagers maps os-release IDs to their package manager.
var distroManagers = map[string]string{
	"debian":      engine.ManagerApt,
	"ubuntu":      engine.ManagerApt,
	"linuxmint":   engine.ManagerApt,
	"pop":         engine.ManagerApt,
	"arch":        engine.ManagerPacman,
	"manjaro":     engine.ManagerPacman,
	"endeavouros": engine.ManagerPacman,
	"fedora":      engine.ManagerDnf,
	"rhel":        engine.ManagerDnf,
	"centos":      engine.ManagerDnf,
	"rocky":       engine.ManagerDnf,
	"almalinux":   engine.ManagerDnf,
}

// OSRelease holds the identification fields of an os-release file.
type OSRelease struct {
	ID     string
	IDLike []string
	Name   string
}

// ReadOSRelease parses an os-release file.
func ReadOSRelease(path string) (*OSRelease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseOSRelease(data)
}

func parseOSRelease(data []byte) (*OSRelease, error) {
	rel := &OSRelease{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		words, err := shellquote.Split(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid os-release value for %s: %w", key, err)
		}
		value := strings.Join(words, " ")

		switch key {
		case "ID":
			rel.ID = strings.ToLower(value)
		case "ID_LIKE":
			rel.IDLike = strings.Fields(strings.ToLower(value))
		case "NAME":
			rel.Name = value
		}
	}
	return rel, scanner.Err()
}

// PackageManager returns the manager for the distribution, checking ID
// before ID_LIKE.
func (r *OSRelease) PackageManager() (string, bool) {
	for _, id := range append([]string{r.ID}, r.IDLike...) {
		if pm, ok := distroManagers[id]; ok {
			return pm, true
		}
	}
	return "", false
}

// DetectPackageManager selects the package manager from the os-release file.
// A non-empty override wins without reading the file. Without an override a
// missing or unrecognized file is fatal, since nothing can be installed
// without knowing the package manager.
func DetectPackageManager(osReleasePath, override string) (string, error) {
	if override != "" && override != engine.ManagerAuto {
		return override, nil
	}
	if osReleasePath == "" {
		osReleasePath = DefaultOSReleasePath
	}

	rel, err := ReadOSRelease(osReleasePath)
	if err != nil {
		return "", engine.NewPrerequisiteError("package manager",
			fmt.Errorf("cannot read %s and no package manager override was given: %w", osReleasePath, err))
	}
	pm, ok := rel.PackageManager()
	if !ok {
		return "", engine.NewPrerequisiteError("package manager",
			fmt.Errorf("no supported package manager for distribution %q", rel.ID))
	}
	return pm, nil
}

// ResolvePackageManager returns a manifest whose primary package manager is
// concrete. The input manifest is not modified.
func ResolvePackageManager(m *engine.Manifest, osReleasePath, override string) (*engine.Manifest, error) {
	if override != "" && override != engine.ManagerAuto {
		return m.WithPackageManager(override), nil
	}
	if m.PackageManager != engine.ManagerAuto && m.PackageManager != "" {
		return m, nil
	}
	pm, err := DetectPackageManager(osReleasePath, "")
	if err != nil {
		return nil, err
	}
	return m.WithPackageManager(pm), nil
}
