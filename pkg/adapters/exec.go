package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bootkit/bootkit/pkg/engine"
)

// ExecRunner runs commands as local child processes.
type ExecRunner struct {
	// Stdout and Stderr, when set, receive a live copy of process output.
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes cmd. The executable is resolved against the PATH carried in
// cmd.Env so tools installed earlier in the run are found.
func (r *ExecRunner) Run(ctx context.Context, cmd engine.Command) (*engine.CommandResult, error) {
	if len(cmd.Argv) == 0 {
		return nil, fmt.Errorf("command is required")
	}

	name := cmd.Argv[0]
	if len(cmd.Env) > 0 {
		if resolved, ok := engine.NewPathContext(cmd.Env).LookPath(name); ok {
			name = resolved
		}
	}

	c := exec.CommandContext(ctx, name, cmd.Argv[1:]...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		c.Env = cmd.Env
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if r.Stdout != nil {
		c.Stdout = io.MultiWriter(&stdout, r.Stdout)
	}
	if r.Stderr != nil {
		c.Stderr = io.MultiWriter(&stderr, r.Stderr)
	}

	start := time.Now()
	err := c.Run()
	log.Debug().
		Str("command", strings.Join(cmd.Argv, " ")).
		Dur("duration", time.Since(start)).
		Msg("Command finished")

	result := &engine.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", cmd.Argv[0], err)
	}
	return result, nil
}

// base holds what every command-line adapter shares.
type base struct {
	name   string
	binary string
	runner engine.Runner
}

func (b *base) Name() string   { return b.name }
func (b *base) Binary() string { return b.binary }

// query runs a read-only command and returns its stdout. A non-zero exit is an error.
func (b *base) query(ctx context.Context, pc engine.PathContext, argv ...string) (string, error) {
	out, err := b.runner.Run(ctx, engine.Command{Argv: argv, Env: pc.Environ()})
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("%s exited with status %d: %s",
			strings.Join(argv, " "), out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return out.Stdout, nil
}

// succeeds runs a read-only command and reports whether it exited zero.
func (b *base) succeeds(ctx context.Context, pc engine.PathContext, argv ...string) (bool, error) {
	out, err := b.runner.Run(ctx, engine.Command{Argv: argv, Env: pc.Environ()})
	if err != nil {
		return false, err
	}
	return out.ExitCode == 0, nil
}

// unsupported is an invocation that fails with err when dispatched.
func unsupported(label string, err error) engine.Invocation {
	return engine.Invocation{Steps: []engine.Step{{
		Label: label,
		Apply: func(context.Context) error { return err },
	}}}
}

func lines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
