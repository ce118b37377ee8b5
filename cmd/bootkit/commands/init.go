package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/config"
	"github.com/bootkit/bootkit/pkg/stores"
)

const starterManifest = `{
  // bootkit manifest. Comments and trailing commas are allowed.
  "target": %q,
  "packageManager": %q,
  "systemPackages": ["git", "ripgrep"],
  "miseRuntimes": ["node@lts"],
  "environment": {
    "EDITOR": "nvim",
  },
  "optional": {
    "systemPackages": [],
  },
}
`

func newInitCommand() *cobra.Command {
	var (
		force       bool
		newManifest string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the settings file and run journal",
		Long: `Write a default settings file, create the run journal database and, with
--new-manifest, a starter manifest for this platform.`,
		Example: `  # Initialize with defaults
  bootkit init

  # Also write a starter manifest
  bootkit init --new-manifest ~/dotfiles/bootkit.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				fmt.Fprintf(out, "✓ Settings already exist: %s\n", path)
			} else {
				data, err := settings.Marshal()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("failed to write settings: %w", err)
				}
				fmt.Fprintf(out, "✓ Wrote settings: %s\n", path)
			}

			store, err := stores.Open(ctx, settings.Journal.Path)
			if err != nil {
				return fmt.Errorf("failed to initialize run journal: %w", err)
			}
			if err := store.HealthCheck(ctx); err != nil {
				store.Close()
				return err
			}
			store.Close()
			fmt.Fprintf(out, "✓ Run journal ready: %s\n", settings.Journal.Path)

			if newManifest != "" {
				if _, err := os.Stat(newManifest); err == nil && !force {
					return fmt.Errorf("manifest %s already exists; use --force to overwrite", newManifest)
				} else if err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
				target, pm := runtime.GOOS, "auto"
				if runtime.GOOS == "windows" {
					pm = "scoop"
				}
				content := fmt.Sprintf(starterManifest, target, pm)
				if err := os.WriteFile(newManifest, []byte(content), 0o644); err != nil {
					return fmt.Errorf("failed to write manifest: %w", err)
				}
				fmt.Fprintf(out, "✓ Wrote starter manifest: %s\n", newManifest)
			}

			log.Debug().Str("settings", path).Msg("Initialized")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&newManifest, "new-manifest", "", "write a starter manifest to this path")

	return cmd
}
