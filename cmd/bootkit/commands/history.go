package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/report"
	"github.com/bootkit/bootkit/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		prune int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs",
		Long: `List recorded runs, newest first, or show the per-action results of one
run. The history is informational only; planning always probes the live host.`,
		Example: `  # Recent runs
  bootkit history

  # Results of one run
  bootkit history 6f1c9e0a-...

  # Keep only the last 10 runs
  bootkit history --prune 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := stores.Open(ctx, settings.Journal.Path)
			if err != nil {
				return fmt.Errorf("failed to open run journal: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("prune") {
				removed, err := store.PruneRuns(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d runs\n", removed)
				return nil
			}

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				results, err := store.ListResults(ctx, run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return report.WriteJSON(out, struct {
						*stores.Run
						Results []*stores.ActionRecord `json:"results"`
					}{run, results})
				}

				fmt.Fprintf(out, "Run %s (%s) %s, plan %s\n", run.ID, run.Target, run.Status, run.PlanID)
				if run.Error != nil {
					fmt.Fprintf(out, "Error: %s\n", *run.Error)
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "#\tACTION\tOUTCOME\tDURATION\tCAUSE")
				for _, r := range results {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Seq+1, r.ActionID, r.Outcome, r.Duration.Round(time.Millisecond), r.Cause)
				}
				return w.Flush()
			}

			runs, err := store.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return report.WriteJSON(out, runs)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tTARGET\tSTATUS\tOK\tSKIPPED\tWARNED\tFAILED\tDRY RUN")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%v\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Target, r.Status,
					r.Counts.Succeeded, r.Counts.AlreadySatisfied, r.Counts.Warned, r.Counts.Failed, r.DryRun)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().IntVar(&prune, "prune", 0, "delete all but the newest N runs")

	return cmd
}
