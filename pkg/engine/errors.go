package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure that may succeed when the run is repeated.
	// Examples: a package manager that could not be queried, an interrupted run.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: a malformed manifest, a missing prerequisite tool.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the manifest path, package, or tool that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error codes.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeManifestNotFound    = "MANIFEST_NOT_FOUND"
	ErrCodeManifestUnreadable  = "MANIFEST_UNREADABLE"
	ErrCodeManifestMalformed   = "MANIFEST_MALFORMED"
	ErrCodeManifestInvalid     = "MANIFEST_INVALID"
	ErrCodeProbeUnavailable    = "PROBE_UNAVAILABLE"
	ErrCodeActionFailed        = "ACTION_FAILED"
	ErrCodePrerequisiteMissing = "PREREQUISITE_MISSING"
	ErrCodePolicyDenied        = "POLICY_DENIED"
	ErrCodeInterrupted         = "INTERRUPTED"
	ErrCodeUnknownAdapter      = "UNKNOWN_ADAPTER"
)

// NewManifestNotFoundError reports a manifest path that does not resolve.
func NewManifestNotFoundError(path string, err error) *EngineError {
	return NewPermanentError("manifest not found", err).
		WithCode(ErrCodeManifestNotFound).
		WithResource(path)
}

// NewManifestUnreadableError reports a manifest path that exists but could not
// be read, such as a directory or a file without read permission.
func NewManifestUnreadableError(path string, err error) *EngineError {
	return NewPermanentError("manifest could not be read", err).
		WithCode(ErrCodeManifestUnreadable).
		WithResource(path)
}

// NewManifestMalformedError reports a manifest that is not structured data.
func NewManifestMalformedError(path string, err error) *EngineError {
	return NewPermanentError("manifest is not valid JSON", err).
		WithCode(ErrCodeManifestMalformed).
		WithResource(path)
}

// NewManifestInvalidError reports a manifest that parsed but violates the schema.
func NewManifestInvalidError(path, message string, err error) *EngineError {
	return NewPermanentError(message, err).
		WithCode(ErrCodeManifestInvalid).
		WithResource(path)
}

// NewProbeUnavailableError reports that host state for a tool could not be determined.
func NewProbeUnavailableError(tool, operation string, err error) *EngineError {
	return NewTransientError("host state could not be determined", err).
		WithCode(ErrCodeProbeUnavailable).
		WithResource(tool).
		WithOperation(operation)
}

// NewActionError reports a single failed action.
func NewActionError(actionID string, exitCode int, err error) *EngineError {
	return NewTransientError("action failed", err).
		WithCode(ErrCodeActionFailed).
		WithResource(actionID).
		WithDetail("exit_code", exitCode)
}

// NewPrerequisiteError reports a tool that every later stage depends on.
func NewPrerequisiteError(tool string, err error) *EngineError {
	return NewPermanentError("required tool is missing and could not be installed", err).
		WithCode(ErrCodePrerequisiteMissing).
		WithResource(tool)
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	return hasClass(err, ErrorClassTransient)
}

// IsManifestError returns true for any manifest that could not be loaded.
func IsManifestError(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeManifestNotFound, ErrCodeManifestUnreadable, ErrCodeManifestMalformed, ErrCodeManifestInvalid:
		return true
	}
	return false
}

// IsProbeUnavailable returns true if a probe could not determine host state.
func IsProbeUnavailable(err error) bool {
	return ErrorCode(err) == ErrCodeProbeUnavailable
}

// IsPrerequisite returns true if a required tool is missing.
func IsPrerequisite(err error) bool {
	return ErrorCode(err) == ErrCodePrerequisiteMissing
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	return ErrorCode(err) == code
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// ErrorCode returns the code carried by err, or "" for unclassified errors.
func ErrorCode(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
