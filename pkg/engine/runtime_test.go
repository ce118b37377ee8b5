package engine

import "testing"

func TestParseRuntime(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		version string
		command string
	}{
		{"node", "node", "latest", "node"},
		{"node@20", "node", "20", "node"},
		{"python@3.12", "python", "3.12", "python3"},
		{"rust@stable", "rust", "stable", "rustc"},
		{"core:erlang@26", "core:erlang", "26", "erl"},
		{"aqua:BurntSushi/ripgrep", "aqua:BurntSushi/ripgrep", "latest", "ripgrep"},
		{"go@", "go", "latest", "go"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rt := ParseRuntime(tt.input)
			if rt.Name != tt.name || rt.Version != tt.version || rt.Command != tt.command {
				t.Errorf("ParseRuntime(%q) = %+v, expected name=%s version=%s command=%s",
					tt.input, rt, tt.name, tt.version, tt.command)
			}
		})
	}
}
