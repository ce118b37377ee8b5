package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus is the overall status of one reconciliation run.
type RunStatus string

const (
	// RunStatusSucceeded means every action succeeded, was already satisfied, or warned.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartial means at least one install failed and the run continued.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed means the run halted on a fatal error.
	RunStatusFailed RunStatus = "failed"

	// RunStatusInterrupted means the run was cancelled before all actions ran.
	RunStatusInterrupted RunStatus = "interrupted"
)

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusSucceeded, RunStatusPartial, RunStatusFailed, RunStatusInterrupted:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// StatusOf derives the run status from recorded results and the error
// returned by Execute.
func StatusOf(results []ExecutionResult, err error) RunStatus {
	switch {
	case HasCode(err, ErrCodeInterrupted):
		return RunStatusInterrupted
	case err != nil:
		return RunStatusFailed
	}
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			return RunStatusPartial
		}
	}
	return RunStatusSucceeded
}

// Validate checks that the outcome is one of the known values.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeSucceeded, OutcomeAlreadySatisfied, OutcomeFailed, OutcomeWarned:
		return nil
	default:
		return fmt.Errorf("invalid outcome: %s", o)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}
