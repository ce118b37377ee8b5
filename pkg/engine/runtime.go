package engine

import "strings"

// runtimeCommands maps runtime identifiers to the executable that proves the
// runtime is installed. A runtime's package name and its executable differ often.
var runtimeCommands = map[string]string{
	"bun":       "bun",
	"deno":      "deno",
	"dotnet":    "dotnet",
	"elixir":    "elixir",
	"erlang":    "erl",
	"go":        "go",
	"golang":    "go",
	"gradle":    "gradle",
	"java":      "java",
	"kotlin":    "kotlin",
	"lua":       "lua",
	"maven":     "mvn",
	"neovim":    "nvim",
	"node":      "node",
	"nodejs":    "node",
	"pnpm":      "pnpm",
	"poetry":    "poetry",
	"python":    "python3",
	"ruby":      "ruby",
	"rust":      "rustc",
	"terraform": "terraform",
	"uv":        "uv",
	"zig":       "zig",
}

// DefaultRuntimeVersion is used when a runtime declares no version.
const DefaultRuntimeVersion = "latest"

// ResolveRuntimeCommand returns the executable checked for a runtime.
// Backend prefixes such as "core:" or "aqua:owner/" are ignored.
func ResolveRuntimeCommand(name string) string {
	base := strings.ToLower(name)
	if i := strings.LastIndexAny(base, ":/"); i >= 0 {
		base = base[i+1:]
	}
	if cmd, ok := runtimeCommands[base]; ok {
		return cmd
	}
	return base
}

// ParseRuntime splits "name@version" into a RuntimeSpec.
func ParseRuntime(s string) RuntimeSpec {
	name, version, _ := strings.Cut(s, "@")
	return NewRuntimeSpec(name, version)
}

// NewRuntimeSpec fills in the default version and the resolved command.
func NewRuntimeSpec(name, version string) RuntimeSpec {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if version == "" {
		version = DefaultRuntimeVersion
	}
	return RuntimeSpec{
		Name:    name,
		Version: version,
		Command: ResolveRuntimeCommand(name),
	}
}
