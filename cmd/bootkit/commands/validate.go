package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/manifest"
	"github.com/bootkit/bootkit/pkg/report"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifest...]",
		Short: "Validate manifests",
		Long: `Validate manifests against the manifest schema without probing the host.

Checks that the file exists, parses as JSON (comments and trailing commas are
allowed), declares a supported packageManager and has no duplicate names
within a list.`,
		Example: `  # Validate the configured manifest
  bootkit validate

  # Validate several manifests
  bootkit validate windows.json arch.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{manifestPath}
			}

			out := cmd.OutOrStdout()
			var failed error
			for _, path := range paths {
				m, err := manifest.Load(path)
				if err != nil {
					log.Error().Err(err).Str("manifest", path).Msg("Manifest invalid")
					fmt.Fprintf(out, "✗ %s: %v\n", path, err)
					if failed == nil {
						failed = err
					}
					continue
				}

				if jsonOutput {
					if err := report.WriteJSON(out, m); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "✓ %s: target %s, %s, %d sources, %d packages, %d runtimes, %d environment variables\n",
					path, m.Target, m.PackageManager, len(m.Sources), len(m.Packages), len(m.Runtimes), len(m.Environment))
				if !m.Optional.Empty() {
					fmt.Fprintf(out, "  optional: %d sources, %d packages, %d runtimes\n",
						len(m.Optional.Sources), len(m.Optional.Packages), len(m.Optional.Runtimes))
				}
			}

			if failed != nil {
				return &exitError{code: report.ExitFatal, err: failed}
			}
			return nil
		},
	}

	return cmd
}
