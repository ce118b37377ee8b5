package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/engine"
	"github.com/bootkit/bootkit/pkg/manifest"
	"github.com/bootkit/bootkit/pkg/policy"
	"github.com/bootkit/bootkit/pkg/probe"
	"github.com/bootkit/bootkit/pkg/report"
	"github.com/bootkit/bootkit/pkg/telemetry"
)

func newPlanCommand() *cobra.Command {
	var (
		flags runFlags
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the actions apply would take",
		Long: `Probe the host and print the ordered actions needed to reach the state
declared in the manifest. Nothing is installed.

Actions are grouped by category in execution order: prerequisites, sources,
packages, runtimes, environment and dotfiles. Each is an install, a skip
(already satisfied or denied by policy) or a reconcile (a conflict bootkit
reports but never resolves on its own).`,
		Example: `  # Preview a manifest
  bootkit plan -m windows.json

  # Include the optional lists
  bootkit plan -m arch.json --with-optional

  # Re-plan whenever the manifest changes
  bootkit plan -m arch.json --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Debug().
				Str("manifest", manifestPath).
				Bool("watch", watch).
				Msg("Planning")

			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}

			m, err := loadManifest()
			if err != nil {
				return &exitError{code: report.ExitFatal, err: err}
			}
			if err := planOnce(ctx, cmd.OutOrStdout(), p, flags.withOptionalLists(cmd, m, false), flags.planOptions()); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			log.Info().Str("manifest", manifestPath).Msg("Watching manifest for changes")
			return manifest.Watch(ctx, manifestPath, manifest.DefaultDebounce, func(m *engine.Manifest, err error) {
				if err == nil {
					m, err = probe.ResolvePackageManager(m, settings.OSRelease, settings.PackageManager)
				}
				if err != nil {
					log.Error().Err(err).Msg("Manifest rejected")
					return
				}
				fmt.Fprintln(cmd.OutOrStdout())
				if err := planOnce(ctx, cmd.OutOrStdout(), p, flags.withOptionalLists(cmd, m, false), flags.planOptions()); err != nil {
					log.Error().Err(err).Msg("Planning failed")
				}
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-plan when the manifest changes")

	return cmd
}

func planOnce(ctx context.Context, out io.Writer, p *pipeline, m *engine.Manifest, opts engine.PlanOptions) error {
	ctx, span := tel.Tracer.StartRunSpan(ctx, "plan", m.Target)
	defer span.End()

	plan, violations, err := p.plan(ctx, m, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if jsonOutput {
		return report.WriteJSON(out, struct {
			*engine.Plan
			Violations []policy.Violation `json:"violations,omitempty"`
		}{plan, violations})
	}
	return report.RenderPlan(out, plan)
}
