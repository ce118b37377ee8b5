package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/engine"
	"github.com/bootkit/bootkit/pkg/manifest"
)

// runFlags are shared by plan and apply.
type runFlags struct {
	skipPackages    bool
	skipRuntimes    bool
	skipEnvironment bool
	skipDotfiles    bool
	withOptional    bool
	yes             bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.skipPackages, "skip-packages", false, "do not plan package sources or packages")
	cmd.Flags().BoolVar(&f.skipRuntimes, "skip-runtimes", false, "do not plan runtimes")
	cmd.Flags().BoolVar(&f.skipEnvironment, "skip-environment", false, "do not plan environment variables")
	cmd.Flags().BoolVar(&f.skipDotfiles, "skip-dotfiles", false, "do not plan dotfiles")
	cmd.Flags().BoolVar(&f.withOptional, "with-optional", false, "include the manifest's optional lists")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask before including optional lists")
}

func (f *runFlags) planOptions() engine.PlanOptions {
	return engine.PlanOptions{
		SkipPackages:    f.skipPackages,
		SkipRuntimes:    f.skipRuntimes,
		SkipEnvironment: f.skipEnvironment,
		SkipDotfiles:    f.skipDotfiles,
	}
}

// withOptionalLists merges the optional lists into m when requested and,
// unless ask is false or --yes was given, the user agrees.
func (f *runFlags) withOptionalLists(cmd *cobra.Command, m *engine.Manifest, ask bool) *engine.Manifest {
	if !f.withOptional || m.Optional.Empty() {
		return m
	}
	if ask && !f.yes {
		o := m.Optional
		q := fmt.Sprintf("Include %d optional sources, %d packages and %d runtimes?",
			len(o.Sources), len(o.Packages), len(o.Runtimes))
		if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), q) {
			return m
		}
	}
	return manifest.MergeOptional(m)
}

// confirm asks a yes/no question; anything but y or yes declines.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
