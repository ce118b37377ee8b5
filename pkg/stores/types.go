package stores

import (
	"time"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Run is one recorded reconciliation run.
type Run struct {
	ID             string           `json:"id"`
	PlanID         string           `json:"plan_id"`
	Target         string           `json:"target"`
	PackageManager string           `json:"package_manager"`
	ManifestPath   string           `json:"manifest_path"`
	DryRun         bool             `json:"dry_run"`
	Status         engine.RunStatus `json:"status"`
	Counts         Counts           `json:"counts"`
	Error          *string          `json:"error,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
}

// Counts tallies results by outcome.
type Counts struct {
	Succeeded        int `json:"succeeded"`
	AlreadySatisfied int `json:"already_satisfied"`
	Failed           int `json:"failed"`
	Warned           int `json:"warned"`
}

// CountOutcomes tallies the outcomes of a result list.
func CountOutcomes(results []engine.ExecutionResult) Counts {
	var c Counts
	for _, r := range results {
		switch r.Outcome {
		case engine.OutcomeSucceeded:
			c.Succeeded++
		case engine.OutcomeAlreadySatisfied:
			c.AlreadySatisfied++
		case engine.OutcomeFailed:
			c.Failed++
		case engine.OutcomeWarned:
			c.Warned++
		}
	}
	return c
}

// ActionRecord is the persisted form of one ExecutionResult.
type ActionRecord struct {
	RunID    string            `json:"run_id"`
	Seq      int               `json:"seq"`
	ActionID string            `json:"action_id"`
	Category engine.Category   `json:"category"`
	Kind     engine.ActionKind `json:"kind"`
	Outcome  engine.Outcome    `json:"outcome"`
	Cause    string            `json:"cause,omitempty"`
	ExitCode int               `json:"exit_code"`
	Command  string            `json:"command,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// NewActionRecord converts an execution result.
func NewActionRecord(runID string, seq int, r engine.ExecutionResult) *ActionRecord {
	return &ActionRecord{
		RunID:    runID,
		Seq:      seq,
		ActionID: r.Action.ID(),
		Category: r.Action.Category,
		Kind:     r.Action.Kind,
		Outcome:  r.Outcome,
		Cause:    r.Cause,
		ExitCode: r.ExitCode,
		Command:  r.Command,
		Duration: r.Duration,
	}
}
