// Package errors defines the error taxonomy for the LLM pipeline and the
// classification logic that maps failures onto retry behavior.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType categorizes pipeline failures for retry classification.
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates HTTP 429 from the provider (retryable).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates provider service failure, HTTP 5xx (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeConfiguration indicates missing credentials or feature gating
	// (fatal, never retried).
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeValidation indicates rejected input, such as an empty prompt
	// (fatal, never retried).
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeClient indicates a non-retryable HTTP 4xx other than 429.
	ErrorTypeClient ErrorType = "client_error"

	// ErrorTypeParse indicates no extraction strategy produced content.
	ErrorTypeParse ErrorType = "parse_failed"

	// ErrorTypeUnknown indicates an unclassified error (not retried).
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common sentinel errors for consistent handling across the pipeline.
var (
	// ErrMissingCredentials indicates no API key is configured.
	ErrMissingCredentials = errors.New("provider credentials missing")

	// ErrAIDisabled indicates the AI feature flag is off.
	ErrAIDisabled = errors.New("AI generation disabled")

	// ErrEmptyInput indicates the request input is empty after trimming.
	ErrEmptyInput = errors.New("request input is empty")

	// ErrCacheMiss indicates the requested entry was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrStreamIncomplete indicates the stream closed without usable content.
	ErrStreamIncomplete = errors.New("stream ended without content")

	// ErrNoExtractionStrategy indicates every parse strategy failed.
	ErrNoExtractionStrategy = errors.New("no extraction strategy succeeded")

	// ErrRetriesExhausted indicates all retry attempts were consumed.
	ErrRetriesExhausted = errors.New("all retries exhausted")

	// ErrBudgetExhausted indicates the wall-clock retry budget ran out.
	ErrBudgetExhausted = errors.New("retry budget exhausted")
)

// ConfigurationError indicates the pipeline cannot run as configured. It is
// fatal and surfaced immediately; no fallback is meaningful without a working
// configuration.
type ConfigurationError struct {
	Reason string `json:"reason"`
	Cause  error  `json:"-"`
}

// Error returns the configuration failure description.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ValidationError captures rejected input with field context. Fatal, never
// retried.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error returns the validation failure with field context when present.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ProviderError captures a structured error response from the LLM provider,
// including the HTTP status that drives retry classification.
type ProviderError struct {
	Provider   string    `json:"provider"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	Code       string    `json:"code"`
	Type       ErrorType `json:"type"`
	RetryAfter int       `json:"retry_after"` // Retry-After header value in seconds
}

// Error returns formatted provider error with status code context.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the provider error warrants another attempt:
// 429, 5xx, and transport-level timeouts are transient; other 4xx are not.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// GetRetryAfter returns the provider-specified wait, or zero.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// ParseError indicates response extraction failed after every strategy.
// Non-retryable at the transport layer; the orchestrator substitutes a
// phase fallback instead.
type ParseError struct {
	Strategy string `json:"strategy"` // Last strategy attempted
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

// Error returns the parse failure with the last strategy attempted.
func (e *ParseError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("parse failed (%s): %s", e.Strategy, e.Message)
	}
	return fmt.Sprintf("parse failed: %s", e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *ParseError) Unwrap() error { return e.Cause }

// StatusToType maps an HTTP status code onto an ErrorType.
func StatusToType(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case status >= 500:
		return ErrorTypeProvider
	case status >= 400:
		// Includes 408: every 4xx other than 429 is a caller problem a
		// retry cannot fix.
		return ErrorTypeClient
	default:
		return ErrorTypeUnknown
	}
}
