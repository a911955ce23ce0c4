package retry

import (
	"sync/atomic"
	"time"
)

// retryStats provides thread-safe retry metrics using atomic operations.
type retryStats struct {
	totalAttempts           atomic.Int64 // All handler invocations including retries
	successfulRetries       atomic.Int64 // Requests that succeeded after at least one retry
	successfulFirstAttempts atomic.Int64 // Requests that succeeded immediately
	failedRetries           atomic.Int64 // Requests that failed after all attempts
	retrySleeps             atomic.Int64 // Inter-attempt sleeps performed
	maxBackoff              atomic.Int64 // Longest backoff in nanoseconds
}

// Stats is a snapshot of retry middleware activity.
type Stats struct {
	TotalAttempts           int64         `json:"total_attempts"`
	SuccessfulRetries       int64         `json:"successful_retries"`
	SuccessfulFirstAttempts int64         `json:"successful_first_attempts"`
	FailedRetries           int64         `json:"failed_retries"`
	RetrySleeps             int64         `json:"retry_sleeps"`
	MaxBackoff              time.Duration `json:"max_backoff"`
}

func (r *retryMiddleware) recordBackoff(backoff time.Duration) {
	nanos := backoff.Nanoseconds()
	for {
		current := r.stats.maxBackoff.Load()
		if nanos <= current {
			return
		}
		if r.stats.maxBackoff.CompareAndSwap(current, nanos) {
			return
		}
	}
}

// Snapshot returns the current retry statistics.
func (r *retryMiddleware) Snapshot() Stats {
	return Stats{
		TotalAttempts:           r.stats.totalAttempts.Load(),
		SuccessfulRetries:       r.stats.successfulRetries.Load(),
		SuccessfulFirstAttempts: r.stats.successfulFirstAttempts.Load(),
		FailedRetries:           r.stats.failedRetries.Load(),
		RetrySleeps:             r.stats.retrySleeps.Load(),
		MaxBackoff:              time.Duration(r.stats.maxBackoff.Load()),
	}
}
