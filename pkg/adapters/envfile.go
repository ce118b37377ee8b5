package adapters

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bootkit/bootkit/pkg/engine"
)

const envFileHeader = "# Managed by bootkit. Source this file from your shell profile.\n"

// EnvFile persists environment variables as export lines in a shell file.
// On Windows variables are also written to the user environment with setx.
type EnvFile struct {
	path     string
	goos     string
	pathDirs []string
}

// NewEnvFile returns the environment store. pathDirs lists directories that
// tools install executables into; those that exist are reported as
// persisted path entries.
func NewEnvFile(path, goos string, pathDirs []string) *EnvFile {
	return &EnvFile{path: path, goos: goos, pathDirs: pathDirs}
}

func (e *EnvFile) Name() string { return "env" }

// Path returns the env file location.
func (e *EnvFile) Path() string { return e.path }

// Persisted reads the env file and collects existing install directories.
// A missing file is not an error.
func (e *EnvFile) Persisted() (engine.PersistedEnv, error) {
	persisted := engine.PersistedEnv{Vars: make(map[string]string)}

	entries, err := e.read()
	if err != nil {
		return persisted, err
	}
	for _, kv := range entries {
		persisted.Vars[kv.key] = kv.value
	}

	for _, dir := range e.pathDirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			persisted.PathDirs = append(persisted.PathDirs, dir)
		}
	}
	return persisted, nil
}

func (e *EnvFile) SetInvocation(v engine.EnvVarSpec) engine.Invocation {
	inv := engine.Invocation{Steps: []engine.Step{{
		Label: fmt.Sprintf("persist %s in %s", shellquote.Join(v.Key+"="+v.Value), e.path),
		Apply: func(context.Context) error { return e.set(v.Key, v.Value) },
	}}}
	if e.goos == "windows" {
		inv = inv.Then(engine.Argv("setx", v.Key, v.Value))
	}
	return inv
}

type envEntry struct {
	key   string
	value string
}

func (e *EnvFile) read() ([]envEntry, error) {
	data, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return parseEnvFile(data)
}

func parseEnvFile(data []byte) ([]envEntry, error) {
	var entries []envEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words, err := shellquote.Split(line)
		if err != nil {
			return nil, fmt.Errorf("env file line %d: %w", n, err)
		}
		if len(words) == 2 && words[0] == "export" {
			words = words[1:]
		}
		if len(words) != 1 {
			return nil, fmt.Errorf("env file line %d: expected one assignment", n)
		}
		key, value, ok := strings.Cut(words[0], "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("env file line %d: expected KEY=value", n)
		}
		entries = append(entries, envEntry{key: key, value: value})
	}
	return entries, scanner.Err()
}

// set updates or appends key and rewrites the file atomically.
func (e *EnvFile) set(key, value string) error {
	entries, err := e.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].key == key {
			entries[i].value = value
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, envEntry{key: key, value: value})
	}

	var buf bytes.Buffer
	buf.WriteString(envFileHeader)
	for _, kv := range entries {
		buf.WriteString("export ")
		buf.WriteString(shellquote.Join(kv.key + "=" + kv.value))
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("failed to create env file directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(e.path), ".env-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary env file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary env file: %w", err)
	}
	if err := os.Rename(tmpPath, e.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move env file into place: %w", err)
	}
	return nil
}
