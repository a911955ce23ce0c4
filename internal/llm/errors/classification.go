package errors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Classify transforms any pipeline error into a WorkflowError with retry
// guidance. Typed errors are examined first, then sentinels, then network
// error shapes; anything unrecognized is non-retryable.
func Classify(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	if wfErr := classifyTyped(err); wfErr != nil {
		return wfErr
	}
	if wfErr := classifySentinel(err); wfErr != nil {
		return wfErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &WorkflowError{
			Type:      ErrorTypeTimeout,
			Message:   "request deadline exceeded",
			Code:      "TIMEOUT",
			Retryable: true,
			Cause:     err,
		}
	}

	if IsNetworkError(err) {
		return &WorkflowError{
			Type:      ErrorTypeNetwork,
			Message:   err.Error(),
			Code:      "NETWORK",
			Retryable: true,
			Cause:     err,
		}
	}

	return &WorkflowError{
		Type:      ErrorTypeUnknown,
		Message:   err.Error(),
		Retryable: false,
		Cause:     err,
	}
}

func classifyTyped(err error) *WorkflowError {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return &WorkflowError{
			Type:      ErrorTypeConfiguration,
			Message:   cfgErr.Reason,
			Code:      "CONFIGURATION",
			Retryable: false,
			Cause:     err,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Cause:     err,
		}
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return &WorkflowError{
			Type:      provErr.Type,
			Message:   provErr.Message,
			Code:      provErr.Code,
			Retryable: provErr.IsRetryable(),
			Details: map[string]any{
				"provider":    provErr.Provider,
				"status_code": provErr.StatusCode,
				"retry_after": provErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return &WorkflowError{
			Type:      ErrorTypeParse,
			Message:   parseErr.Error(),
			Code:      "PARSE",
			Retryable: false,
			Cause:     err,
		}
	}

	return nil
}

func classifySentinel(err error) *WorkflowError {
	switch {
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrAIDisabled):
		return &WorkflowError{
			Type:      ErrorTypeConfiguration,
			Message:   err.Error(),
			Code:      "CONFIGURATION",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrEmptyInput):
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   err.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrNoExtractionStrategy), errors.Is(err, ErrStreamIncomplete):
		return &WorkflowError{
			Type:      ErrorTypeParse,
			Message:   err.Error(),
			Code:      "PARSE",
			Retryable: false,
			Cause:     err,
		}
	}
	return nil
}

// IsRetryable reports whether an error warrants another transport attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

// IsFatal reports whether the error is a configuration or validation failure
// that must abort without fallback.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Fatal()
}

// IsNetworkError checks for network-related errors using type assertions
// first and string patterns as a last resort.
func IsNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var netErr net.Error
		if errors.As(urlErr.Err, &netErr) {
			return netErr.Timeout()
		}
		return matchesNetworkPattern(urlErr.Err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return matchesNetworkPattern(err.Error())
}

func matchesNetworkPattern(errStr string) bool {
	lowered := strings.ToLower(errStr)
	for _, indicator := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"eof",
	} {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}
