package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bootkit/bootkit/pkg/engine"
)

// RunReport is the JSON document printed by --json.
type RunReport struct {
	PlanID   string                   `json:"plan_id"`
	RunID    string                   `json:"run_id,omitempty"`
	Target   string                   `json:"target"`
	DryRun   bool                     `json:"dry_run"`
	Status   engine.RunStatus         `json:"status"`
	ExitCode int                      `json:"exit_code"`
	Summary  Summary                  `json:"summary"`
	Results  []engine.ExecutionResult `json:"results"`
	Warnings []string                 `json:"warnings,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderPlan writes the plan grouped by category, followed by its warnings
// and a one-line tally.
func RenderPlan(w io.Writer, plan *engine.Plan) error {
	st := newStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s (%s)\n", st.header.Render("Plan for"), plan.Target, plan.PackageManager)
	fmt.Fprintf(&b, "%s\n", st.faint.Render("id "+plan.ID))

	var current engine.Category
	for _, a := range plan.Actions {
		if a.Category != current {
			current = a.Category
			fmt.Fprintf(&b, "\n%s\n", st.category.Render(string(current)))
		}
		fmt.Fprintf(&b, "  %s %s%s\n", st.kind(a.Kind).Render(fmt.Sprintf("%-9s", a.Kind)), a.Adapter+"/"+a.Subject(), planNote(a))
	}

	if len(plan.Warnings) > 0 {
		fmt.Fprintf(&b, "\n%s\n", st.warning.Render("Warnings"))
		for _, warn := range plan.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", warn)
		}
	}

	fmt.Fprintf(&b, "\n%d to install, %d to reconcile, %d unchanged\n",
		plan.Count(engine.ActionInstall), plan.Count(engine.ActionReconcile), plan.Count(engine.ActionSkip))

	_, err := io.WriteString(w, b.String())
	return err
}

func planNote(a engine.PlannedAction) string {
	var notes []string
	switch a.Kind {
	case engine.ActionSkip:
		notes = append(notes, string(a.Reason))
		if a.Reason == engine.SkipPolicyDenied && a.Detail != "" {
			notes = append(notes, a.Detail)
		}
	case engine.ActionReconcile:
		notes = append(notes, a.Detail)
	case engine.ActionInstall:
		if a.DotfilesStep != "" {
			notes = append(notes, string(a.DotfilesStep))
		}
		if a.BestEffort {
			notes = append(notes, "best-effort")
		}
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ": ") + ")"
}

// RenderResults writes one line per result, the summary and, when any action
// failed, a failures section with the command to retry.
func RenderResults(w io.Writer, results []engine.ExecutionResult, dryRun bool) error {
	st := newStyles(w)
	summary := Summarize(results)
	var b strings.Builder

	title := "Results"
	if dryRun {
		title = "Dry run"
	}
	fmt.Fprintf(&b, "%s\n", st.header.Render(title))

	var current engine.Category
	for _, r := range results {
		if r.Action.Category != current {
			current = r.Action.Category
			fmt.Fprintf(&b, "\n%s\n", st.category.Render(string(current)))
		}
		line := fmt.Sprintf("  %s %s", st.outcome(r.Outcome).Render(fmt.Sprintf("%-17s", r.Outcome)), r.Action.Adapter+"/"+r.Action.Subject())
		switch {
		case r.Outcome == engine.OutcomeFailed || r.Outcome == engine.OutcomeWarned:
			line += ": " + r.Cause
		case dryRun && r.Command != "":
			line += st.faint.Render("  $ " + r.Command)
		case r.Duration >= time.Second:
			line += st.faint.Render(fmt.Sprintf("  %s", r.Duration.Round(100*time.Millisecond)))
		}
		b.WriteString(line + "\n")
	}

	fmt.Fprintf(&b, "\n%s %d succeeded, %d already satisfied, %d warned, %d failed\n",
		st.header.Render("Summary:"), summary.Succeeded, summary.AlreadySatisfied, summary.Warned, summary.Failed)

	if len(summary.Failures) > 0 {
		fmt.Fprintf(&b, "\n%s\n", st.failure.Render("Failures"))
		for _, f := range summary.Failures {
			fmt.Fprintf(&b, "  %s\n    cause: %s\n", f.ActionID, f.Cause)
			if f.ExitCode != 0 {
				fmt.Fprintf(&b, "    exit code: %d\n", f.ExitCode)
			}
			switch {
			case f.Command != "" && f.Code == engine.ErrCodePrerequisiteMissing:
				fmt.Fprintf(&b, "    run after fixing the prerequisite: %s\n", f.Command)
			case f.Command != "":
				fmt.Fprintf(&b, "    retry: %s\n", f.Command)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
