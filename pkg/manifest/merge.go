package manifest

import (
	"strings"

	"github.com/bootkit/bootkit/pkg/engine"
)

// MergeOptional returns a new manifest with the optional lists appended to
// the base lists. Entries already declared in the base are not repeated.
// The input manifest is not modified and the result has no optional section.
func MergeOptional(base *engine.Manifest) *engine.Manifest {
	out := *base
	out.Sources = append([]engine.SourceSpec(nil), base.Sources...)
	out.Packages = append([]engine.PackageSpec(nil), base.Packages...)
	out.Runtimes = append([]engine.RuntimeSpec(nil), base.Runtimes...)
	out.Environment = append([]engine.EnvVarSpec(nil), base.Environment...)
	out.Optional = nil

	opt := base.Optional
	if opt.Empty() {
		return &out
	}

	sources := make(map[string]bool)
	for _, s := range out.Sources {
		sources[sourceKey(s)] = true
	}
	for _, s := range opt.Sources {
		if !sources[sourceKey(s)] {
			sources[sourceKey(s)] = true
			out.Sources = append(out.Sources, s)
		}
	}

	packages := make(map[string]bool)
	for _, p := range out.Packages {
		packages[packageKey(&out, p)] = true
	}
	for _, p := range opt.Packages {
		if !packages[packageKey(&out, p)] {
			packages[packageKey(&out, p)] = true
			out.Packages = append(out.Packages, p)
		}
	}

	runtimes := make(map[string]bool)
	for _, r := range out.Runtimes {
		runtimes[strings.ToLower(r.Name)] = true
	}
	for _, r := range opt.Runtimes {
		if !runtimes[strings.ToLower(r.Name)] {
			runtimes[strings.ToLower(r.Name)] = true
			out.Runtimes = append(out.Runtimes, r)
		}
	}
	return &out
}

func sourceKey(s engine.SourceSpec) string {
	return strings.ToLower(s.Manager + "/" + s.Name)
}

func packageKey(m *engine.Manifest, p engine.PackageSpec) string {
	return strings.ToLower(m.ManagerFor(p) + "/" + p.Name)
}
