package errors

import (
	"fmt"
	"time"
)

// Kind represents different categories of errors
type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindInvalidArgument     Kind = "invalid_argument"
	KindInvalidTransition   Kind = "invalid_transition"
	KindConflict            Kind = "conflict"
	KindAlreadyExists       Kind = "already_exists"
	KindIO                  Kind = "io"
	KindAnalysisUnavailable Kind = "analysis_unavailable"
	KindProcessLaunch       Kind = "process_launch"
	KindProcessExit         Kind = "process_exit"
	KindMalformedOutput     Kind = "malformed_output"
	KindInternal            Kind = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Kind      Kind                   `json:"kind"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is()
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Kind == appErr.Kind && e.Code == appErr.Code
	}
	return false
}

// New creates a new application error
func New(kind Kind, code, message string, cause error) *AppError {
	return &AppError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// KindOf returns the Kind of err if it is an *AppError, KindInternal otherwise.
func KindOf(err error) Kind {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == kind
}

// Common error constructors for frequent use cases

// NewConfigurationError creates a startup-time configuration error.
// Missing variables are carried in details so callers can report all of them.
func NewConfigurationError(message string, missing []string) *AppError {
	return New(KindConfiguration, "CONFIGURATION_INVALID", message, nil).
		WithDetails(map[string]interface{}{"missing": missing})
}

// NewInvalidArgumentError creates an invalid-argument error
func NewInvalidArgumentError(message string) *AppError {
	return New(KindInvalidArgument, "INVALID_ARGUMENT", message, nil)
}

// NewInvalidTransitionError creates an error for an intent that is not
// applicable to the current lifecycle state
func NewInvalidTransitionError(state, intent string) *AppError {
	return New(KindInvalidTransition, "INVALID_TRANSITION",
		fmt.Sprintf("cannot %s while project is in state %s", intent, state), nil).
		WithDetails(map[string]interface{}{"state": state, "intent": intent})
}

// NewConflictError creates an error for an operation that would race an
// in-flight operation on the same project
func NewConflictError(message string) *AppError {
	return New(KindConflict, "OPERATION_IN_FLIGHT", message, nil)
}

// NewAlreadyExistsError creates an already-exists error
func NewAlreadyExistsError(resource string) *AppError {
	return New(KindAlreadyExists, "ALREADY_EXISTS", fmt.Sprintf("%s already exists", resource), nil)
}

// NewIOError creates a filesystem error
func NewIOError(message string, cause error) *AppError {
	return New(KindIO, "IO_FAILURE", message, cause)
}

// NewAnalysisUnavailableError creates a non-fatal analysis-service error
func NewAnalysisUnavailableError(message string, cause error) *AppError {
	return New(KindAnalysisUnavailable, "ANALYSIS_UNAVAILABLE", message, cause)
}

// NewProcessLaunchError creates an error for a provisioning tool that could
// not be started at all
func NewProcessLaunchError(tool string, cause error) *AppError {
	return New(KindProcessLaunch, "PROCESS_LAUNCH_FAILED",
		fmt.Sprintf("failed to launch provisioning tool %q", tool), cause)
}

// NewProcessExitError creates an error for a provisioning run that started but
// did not succeed. Captured output is attached for diagnostics.
func NewProcessExitError(message, stdout, stderr string, cause error) *AppError {
	return New(KindProcessExit, "PROCESS_EXIT_FAILED", message, cause).
		WithDetails(map[string]interface{}{"stdout": stdout, "stderr": stderr})
}

// NewMalformedOutputError creates an error for a provisioning run that exited
// successfully but produced output that could not be parsed
func NewMalformedOutputError(message, stdout string, cause error) *AppError {
	return New(KindMalformedOutput, "MALFORMED_OUTPUT", message, cause).
		WithDetails(map[string]interface{}{"stdout": stdout})
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	return New(KindInternal, "INTERNAL_ERROR", message, cause)
}
