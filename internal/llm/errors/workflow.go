package errors

import "fmt"

// WorkflowError provides structured error context at phase boundaries.
// Carries the classification the orchestrator uses to decide between
// fallback substitution and aborting the run.
type WorkflowError struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Code      string         `json:"code"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

// Error returns formatted error string with type and code context.
func (e *WorkflowError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *WorkflowError) Unwrap() error { return e.Cause }

// ShouldRetry returns the explicit retry recommendation.
func (e *WorkflowError) ShouldRetry() bool { return e.Retryable }

// Fatal reports whether the error must abort the run rather than degrade to
// a fallback: configuration and validation failures mean no fallback is
// meaningful.
func (e *WorkflowError) Fatal() bool {
	return e.Type == ErrorTypeConfiguration || e.Type == ErrorTypeValidation
}
