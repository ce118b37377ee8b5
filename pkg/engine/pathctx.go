package engine

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// PathContext is the environment handed to child processes. Child processes
// inherit this in-memory copy, not the persisted values, so it is refreshed
// explicitly with ReloadPath after actions that may change the path.
type PathContext struct {
	vars map[string]string
}

// NewPathContext builds a context from KEY=value pairs, typically os.Environ().
func NewPathContext(environ []string) PathContext {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return PathContext{vars: vars}
}

// Get returns a variable.
func (pc PathContext) Get(key string) (string, bool) {
	v, ok := pc.vars[pc.key(key)]
	return v, ok
}

// Vars returns a copy of all variables.
func (pc PathContext) Vars() map[string]string {
	out := make(map[string]string, len(pc.vars))
	for k, v := range pc.vars {
		out[k] = v
	}
	return out
}

// Path returns the path entries in order.
func (pc PathContext) Path() []string {
	raw, _ := pc.Get("PATH")
	if raw == "" {
		return nil
	}
	return filepath.SplitList(raw)
}

// Environ renders the context as sorted KEY=value pairs.
func (pc PathContext) Environ() []string {
	out := make([]string, 0, len(pc.vars))
	for k, v := range pc.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// LookPath searches the context's PATH for an executable.
func (pc PathContext) LookPath(name string) (string, bool) {
	if strings.ContainsRune(name, filepath.Separator) {
		if isExecutable(name) {
			return name, true
		}
		return "", false
	}
	exts := []string{""}
	if runtime.GOOS == "windows" {
		exts = windowsExtensions(pc)
	}
	for _, dir := range pc.Path() {
		if dir == "" {
			continue
		}
		for _, ext := range exts {
			candidate := filepath.Join(dir, name+ext)
			if isExecutable(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

// key maps PATH to the casing already present, since Windows spells it "Path".
func (pc PathContext) key(key string) string {
	if _, ok := pc.vars[key]; ok {
		return key
	}
	if runtime.GOOS == "windows" {
		for k := range pc.vars {
			if strings.EqualFold(k, key) {
				return k
			}
		}
	}
	return key
}

// PersistedEnv is the environment state that survives the current session:
// persisted variables plus directories that belong on the path.
type PersistedEnv struct {
	Vars     map[string]string
	PathDirs []string
}

// ReloadPath returns a new context with persisted variables overlaid on
// current and persisted path directories prepended, without duplicates.
// It does not read or modify host state.
func ReloadPath(persisted PersistedEnv, current PathContext) PathContext {
	vars := current.Vars()
	next := PathContext{vars: vars}
	for k, v := range persisted.Vars {
		if strings.EqualFold(k, "PATH") {
			continue
		}
		vars[next.key(k)] = v
	}

	seen := make(map[string]bool)
	var entries []string
	add := func(dir string) {
		if dir == "" {
			return
		}
		norm := filepath.Clean(dir)
		if runtime.GOOS == "windows" {
			norm = strings.ToLower(norm)
		}
		if seen[norm] {
			return
		}
		seen[norm] = true
		entries = append(entries, dir)
	}
	for _, dir := range persisted.PathDirs {
		add(dir)
	}
	for _, dir := range current.Path() {
		add(dir)
	}
	vars[next.key("PATH")] = strings.Join(entries, string(filepath.ListSeparator))
	return next
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}

func windowsExtensions(pc PathContext) []string {
	exts := []string{""}
	raw, ok := pc.Get("PATHEXT")
	if !ok || raw == "" {
		raw = ".COM;.EXE;.BAT;.CMD"
	}
	for _, ext := range strings.Split(raw, ";") {
		if ext != "" {
			exts = append(exts, strings.ToLower(ext))
		}
	}
	return exts
}
