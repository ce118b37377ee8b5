package policy

import (
	"github.com/bootkit/bootkit/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning surfaces as a plan warning; the action still runs.
	SeverityWarning Severity = "warning"

	// SeverityError denies the action.
	SeverityError Severity = "error"

	// SeverityCritical denies the action.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity denies the action.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a named Rego module. Its package must define a "deny" set whose
// members are messages or {message, severity} objects.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single deny result for one planned action.
type Violation struct {
	Policy   string   `json:"policy"`
	ActionID string   `json:"action_id"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Input is the document a policy sees as `input`.
type Input struct {
	Action         *engine.PlannedAction `json:"action"`
	Target         string                `json:"target"`
	PackageManager string                `json:"package_manager"`
	Config         InputConfig           `json:"config"`
}

// InputConfig carries user settings that policies may consult.
type InputConfig struct {
	DeniedPackages []string `json:"denied_packages"`
	AllowHTTP      bool     `json:"allow_http"`
}
