package commands

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/engine"
	"github.com/bootkit/bootkit/pkg/report"
	"github.com/bootkit/bootkit/pkg/stores"
	"github.com/bootkit/bootkit/pkg/telemetry"
)

func newApplyCommand() *cobra.Command {
	var (
		flags  runFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision the machine from the manifest",
		Long: `Probe the host, plan and install everything the manifest declares that is
missing. Actions run one at a time in category order.

A failed install is recorded and the run continues; a failed prerequisite
(the package manager itself, mise, chezmoi) stops the run. Conflicts are
reported as warnings and never resolved automatically.

Exit codes: 0 when nothing failed (warnings allowed), 1 when any action
failed, 2 when the manifest or a prerequisite is unusable.`,
		Example: `  # Provision this machine
  bootkit apply -m windows.json

  # Show the exact commands without running them
  bootkit apply -m arch.json --dry-run

  # Include the optional lists without prompting
  bootkit apply -m arch.json --with-optional --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			runID := uuid.New().String()

			ctx, span := tel.Tracer.StartRunSpan(cmd.Context(), "apply", "")
			defer span.End()
			span.SetAttributes(telemetry.AttrRunID.String(runID))

			log.Info().
				Str("run_id", runID).
				Str("manifest", manifestPath).
				Bool("dry_run", dryRun).
				Msg("Starting run")

			m, err := loadManifest()
			if err != nil {
				telemetry.RecordError(span, err)
				return &exitError{code: report.ExitFatal, err: err}
			}
			span.SetAttributes(telemetry.AttrTarget.String(m.Target))
			m = flags.withOptionalLists(cmd, m, true)

			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			plan, _, err := p.plan(ctx, m, flags.planOptions())
			if err != nil {
				telemetry.RecordError(span, err)
				return err
			}
			span.SetAttributes(telemetry.AttrPlanID.String(plan.ID))
			for _, w := range plan.Warnings {
				log.Warn().Msg(w)
			}

			results, execErr := p.execute(ctx, plan, dryRun)
			summary := report.Summarize(results)
			status := engine.StatusOf(results, execErr)
			code := report.ExitCode(summary, execErr)
			span.SetAttributes(telemetry.AttrRunStatus.String(string(status)))
			telemetry.RecordError(span, execErr)
			tel.Metrics.RecordRun(status, time.Since(started))

			run := &stores.Run{
				ID:             runID,
				PlanID:         plan.ID,
				Target:         plan.Target,
				PackageManager: plan.PackageManager,
				ManifestPath:   m.Path,
				DryRun:         dryRun,
				Status:         status,
				StartedAt:      started,
				CompletedAt:    time.Now(),
			}
			if execErr != nil {
				msg := execErr.Error()
				run.Error = &msg
			}
			journal(run, results)

			log.Info().
				Str("run_id", runID).
				Str("status", string(status)).
				Int("succeeded", summary.Succeeded).
				Int("already_satisfied", summary.AlreadySatisfied).
				Int("warned", summary.Warned).
				Int("failed", summary.Failed).
				Dur("duration", time.Since(started)).
				Msg("Run finished")

			out := cmd.OutOrStdout()
			if jsonOutput {
				rep := report.RunReport{
					PlanID:   plan.ID,
					RunID:    runID,
					Target:   plan.Target,
					DryRun:   dryRun,
					Status:   status,
					ExitCode: code,
					Summary:  summary,
					Results:  results,
					Warnings: plan.Warnings,
				}
				if execErr != nil {
					rep.Error = execErr.Error()
				}
				if err := report.WriteJSON(out, rep); err != nil {
					return err
				}
			} else if err := report.RenderResults(out, results, dryRun); err != nil {
				return err
			}

			if code != report.ExitOK {
				return &exitError{code: code, err: execErr}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the commands each action would run without running them")

	return cmd
}
