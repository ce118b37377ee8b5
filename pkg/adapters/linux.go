package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/bootkit/bootkit/pkg/engine"
)

// systemManager is a distribution package manager. These ship with the
// operating system and cannot be bootstrapped.
type systemManager struct {
	base
	sudo bool

	list      []string
	check     func(name string) []string
	parseList func(out string) map[string]string
	install   func(pkg engine.PackageSpec) []string
	addSource func(src engine.SourceSpec) []string
}

// NewApt returns the adapter for Debian and Ubuntu hosts.
func NewApt(runner engine.Runner, sudo bool) engine.PackageManager {
	return &systemManager{
		base: base{name: engine.ManagerApt, binary: "apt-get", runner: runner},
		sudo: sudo,
		list: []string{"dpkg-query", "-W", "-f=${db:Status-Abbrev}\t${Package}\n"},
		check: func(name string) []string {
			return []string{"dpkg-query", "-W", "-f=${db:Status-Abbrev}", name}
		},
		parseList: parseDpkgQuery,
		install: func(pkg engine.PackageSpec) []string {
			argv := []string{"apt-get", "install", "-y", "-q"}
			if pkg.Source != "" {
				argv = append(argv, "-t", pkg.Source)
			}
			return append(argv, pkg.Name)
		},
		addSource: func(src engine.SourceSpec) []string {
			return []string{"add-apt-repository", "-y", src.URL}
		},
	}
}

// NewPacman returns the adapter for Arch based hosts.
func NewPacman(runner engine.Runner, sudo bool) engine.PackageManager {
	return &systemManager{
		base: base{name: engine.ManagerPacman, binary: "pacman", runner: runner},
		sudo: sudo,
		list: []string{"pacman", "-Qq"},
		check: func(name string) []string {
			return []string{"pacman", "-Qq", name}
		},
		parseList: parseNameList,
		install: func(pkg engine.PackageSpec) []string {
			return []string{"pacman", "-S", "--needed", "--noconfirm", pkg.QualifiedName()}
		},
	}
}

// NewDnf returns the adapter for Fedora and RHEL based hosts.
func NewDnf(runner engine.Runner, sudo bool) engine.PackageManager {
	return &systemManager{
		base: base{name: engine.ManagerDnf, binary: "dnf", runner: runner},
		sudo: sudo,
		list: []string{"rpm", "-qa", "--queryformat", "%{NAME}\n"},
		check: func(name string) []string {
			return []string{"rpm", "-q", name}
		},
		parseList: parseNameList,
		install: func(pkg engine.PackageSpec) []string {
			argv := []string{"dnf", "install", "-y"}
			if pkg.Source != "" {
				argv = append(argv, "--repo", pkg.Source)
			}
			return append(argv, pkg.Name)
		},
		addSource: func(src engine.SourceSpec) []string {
			return []string{"dnf", "config-manager", "--add-repo", src.URL}
		},
	}
}

func (m *systemManager) CanonicalSource() string { return "" }

func (m *systemManager) BootstrapInvocation() (engine.Invocation, error) {
	return engine.Invocation{}, fmt.Errorf("%s is part of the operating system and cannot be installed automatically", m.name)
}

func (m *systemManager) ListInstalled(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	out, err := m.query(ctx, pc, m.list...)
	if err != nil {
		return nil, err
	}
	return m.parseList(out), nil
}

func (m *systemManager) IsPackageInstalled(ctx context.Context, pc engine.PathContext, name string) (bool, error) {
	if m.name == engine.ManagerApt {
		out, err := m.runner.Run(ctx, engine.Command{Argv: m.check(name), Env: pc.Environ()})
		if err != nil {
			return false, err
		}
		return out.ExitCode == 0 && strings.HasPrefix(out.Stdout, "ii"), nil
	}
	return m.succeeds(ctx, pc, m.check(name)...)
}

// ListSources returns no named sources: distribution repositories are not
// tracked per package.
func (m *systemManager) ListSources(ctx context.Context, pc engine.PathContext) (map[string]string, error) {
	return map[string]string{}, nil
}

func (m *systemManager) InstallInvocation(pkg engine.PackageSpec) engine.Invocation {
	return engine.Argv(m.elevate(m.install(pkg))...)
}

func (m *systemManager) AddSourceInvocation(src engine.SourceSpec) engine.Invocation {
	if m.addSource == nil || src.URL == "" {
		return unsupported(fmt.Sprintf("add source %s to %s", src.Name, m.name),
			fmt.Errorf("%s cannot register source %q", m.name, src.Name))
	}
	return engine.Argv(m.elevate(m.addSource(src))...)
}

func (m *systemManager) elevate(argv []string) []string {
	if !m.sudo {
		return argv
	}
	return append([]string{"sudo"}, argv...)
}

// parseDpkgQuery keeps packages whose status is "ii" (installed).
func parseDpkgQuery(out string) map[string]string {
	installed := make(map[string]string)
	for _, line := range lines(out) {
		status, name, ok := strings.Cut(line, "\t")
		if !ok || !strings.HasPrefix(status, "ii") {
			continue
		}
		installed[strings.TrimSpace(name)] = ""
	}
	return installed
}

func parseNameList(out string) map[string]string {
	installed := make(map[string]string)
	for _, line := range lines(out) {
		installed[line] = ""
	}
	return installed
}
