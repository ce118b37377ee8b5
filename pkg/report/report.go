// Package report aggregates execution results into a summary, maps the
// summary to a process exit code and renders plans and results for humans
// (lipgloss) or machines (JSON).
package report

import (
	"github.com/bootkit/bootkit/pkg/engine"
)

// Exit codes returned by ExitCode.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitFatal   = 2
)

// Failure is one failed action with what a human needs to retry it.
type Failure struct {
	ActionID string `json:"action_id"`
	Cause    string `json:"cause"`
	ExitCode int    `json:"exit_code"`

	// Code classifies the failure, e.g. ACTION_FAILED or PREREQUISITE_MISSING.
	Code string `json:"code,omitempty"`

	// Retryable is set when repeating the run may succeed without changes.
	Retryable bool `json:"retryable"`

	// Command is the invocation to run by hand.
	Command string `json:"command,omitempty"`
}

// Summary counts outcomes of one run. It never modifies the results it was
// built from.
type Summary struct {
	Succeeded        int       `json:"succeeded"`
	AlreadySatisfied int       `json:"already_satisfied"`
	Failed           int       `json:"failed"`
	Warned           int       `json:"warned"`
	Failures         []Failure `json:"failures,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
}

// Total returns the number of recorded results.
func (s Summary) Total() int {
	return s.Succeeded + s.AlreadySatisfied + s.Failed + s.Warned
}

// Summarize aggregates results in order.
func Summarize(results []engine.ExecutionResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome {
		case engine.OutcomeSucceeded:
			s.Succeeded++
		case engine.OutcomeAlreadySatisfied:
			s.AlreadySatisfied++
		case engine.OutcomeWarned:
			s.Warned++
			s.Warnings = append(s.Warnings, r.Action.ID()+": "+r.Cause)
		case engine.OutcomeFailed:
			s.Failed++
			s.Failures = append(s.Failures, Failure{
				ActionID:  r.Action.ID(),
				Cause:     r.Cause,
				ExitCode:  r.ExitCode,
				Code:      engine.ErrorCode(r.Err),
				Retryable: engine.IsTransient(r.Err),
				Command:   r.Command,
			})
		}
	}
	return s
}

// ExitCode maps a summary and the run error to the process exit code.
// Warnings alone never change it.
func ExitCode(s Summary, err error) int {
	switch {
	case engine.IsManifestError(err), engine.IsPrerequisite(err):
		return ExitFatal
	case err != nil, s.Failed > 0:
		return ExitFailure
	default:
		return ExitOK
	}
}
