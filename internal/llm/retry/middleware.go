// Package retry implements the transport retry loop: a wall-clock budget
// shared by all attempts of one logical call, token shrinking to raise the
// chance of completing within timeout, and exponential backoff with jitter
// between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/transport"
)

var (
	// Configuration validation errors.
	errMaxAttemptsInvalid      = errors.New("maxAttempts must be greater than 0")
	errBaseTimeoutInvalid      = errors.New("baseTimeout must be greater than 0")
	errShrinkFactorInvalid     = errors.New("tokenShrinkFactor must be in (0, 1]")
	errTimeoutIncrementInvalid = errors.New("timeoutIncrement must be >= 0")

	// Runtime errors.
	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// retryMiddleware drives the budgeted retry loop around the core handler.
type retryMiddleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  *retryStats

	// Injection points for deterministic tests.
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewMiddlewareWithConfig creates retry middleware with the given
// configuration. Attempts are hard-capped at configuration.MaxAttemptCap.
func NewMiddlewareWithConfig(cfg configuration.RetryConfig) (transport.Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.BaseTimeout <= 0 {
		return nil, fmt.Errorf("%w, got %v", errBaseTimeoutInvalid, cfg.BaseTimeout)
	}
	if cfg.TokenShrinkFactor <= 0 || cfg.TokenShrinkFactor > 1 {
		return nil, fmt.Errorf("%w, got %f", errShrinkFactorInvalid, cfg.TokenShrinkFactor)
	}
	if cfg.TimeoutIncrement < 0 {
		return nil, fmt.Errorf("%w, got %v", errTimeoutIncrementInvalid, cfg.TimeoutIncrement)
	}

	return newRetryMiddleware(cfg).middleware(), nil
}

func newRetryMiddleware(cfg configuration.RetryConfig) *retryMiddleware {
	if cfg.MaxAttempts > configuration.MaxAttemptCap {
		cfg.MaxAttempts = configuration.MaxAttemptCap
	}
	rm := &retryMiddleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
		now:    time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	rm.jitter = func() time.Duration {
		if !cfg.UseJitter {
			return 0
		}
		return time.Duration(rand.Int64N(int64(time.Second))) // #nosec G404 -- non-cryptographic jitter
	}
	return rm
}

// middleware returns the retry middleware function. Across attempts, the
// token budget is monotonically non-increasing and the per-attempt timeout
// monotonically non-decreasing, both bounded by the configured floor and the
// wall-clock budget.
func (r *retryMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, ctx.Err())
			default:
			}

			budget := r.config.Budget()
			start := r.now()

			currentTokens := transport.ClampTokens(req.MaxOutputTokens, r.config.MinOutputTokens)
			currentTimeout := r.config.BaseTimeout

			var lastErr error
			for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
				remaining := budget - r.now().Sub(start)
				if remaining <= 0 {
					r.logger.Warn("retry budget exhausted",
						"budget", budget,
						"attempts", attempt-1,
						"last_error", lastErr)
					break
				}

				attemptReq := req.Clone()
				attemptReq.MaxOutputTokens = currentTokens
				attemptReq.Timeout = minDuration(currentTimeout, remaining)

				resp, err := next.Handle(ctx, attemptReq)
				r.stats.totalAttempts.Add(1)

				if err == nil {
					if attempt > 1 {
						r.stats.successfulRetries.Add(1)
						r.logger.Info("request succeeded after retry",
							"attempt", attempt,
							"model", req.Model,
							"tokens", currentTokens)
					} else {
						r.stats.successfulFirstAttempts.Add(1)
					}
					return resp, nil
				}

				if !llmerrors.IsRetryable(err) {
					r.logger.Debug("non-retryable error",
						"error", err,
						"attempt", attempt,
						"model", req.Model)
					return nil, err
				}

				lastErr = err
				if attempt == r.config.MaxAttempts {
					break
				}

				// Smaller outputs are likelier to complete within timeout;
				// a longer timeout absorbs provider slowness. Both bounded.
				currentTokens = r.shrinkTokens(currentTokens)
				currentTimeout = r.growTimeout(currentTimeout, budget)

				backoff := r.backoff(attempt, budget-r.now().Sub(start))
				if backoff < 0 {
					break
				}
				r.stats.retrySleeps.Add(1)
				r.recordBackoff(backoff)

				r.logger.Debug("retrying after backoff",
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
					"next_tokens", currentTokens,
					"next_timeout", currentTimeout)

				if err := r.sleep(ctx, backoff); err != nil {
					return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, err)
				}
			}

			r.stats.failedRetries.Add(1)
			if lastErr == nil {
				lastErr = llmerrors.ErrBudgetExhausted
			}
			return nil, fmt.Errorf("%w after %d attempts: %w",
				llmerrors.ErrRetriesExhausted, r.config.MaxAttempts, lastErr)
		})
	}
}

// shrinkTokens reduces the token budget by the configured factor without
// dropping below the floor or ever increasing.
func (r *retryMiddleware) shrinkTokens(current int) int {
	floor := r.config.MinOutputTokens
	if floor <= 0 {
		floor = configuration.DefaultMinOutputTokens
	}
	shrunk := int(float64(current) * r.config.TokenShrinkFactor)
	if shrunk < floor {
		shrunk = floor
	}
	if shrunk > current {
		return current
	}
	return shrunk
}

// growTimeout raises the per-attempt timeout by the configured increment,
// never past the wall-clock budget.
func (r *retryMiddleware) growTimeout(current time.Duration, budget time.Duration) time.Duration {
	grown := current + r.config.TimeoutIncrement
	if grown > budget {
		return budget
	}
	return grown
}

// backoff computes the inter-attempt sleep: min(2^(attempt-1) seconds,
// budget remaining) plus jitter. A negative return means the budget is
// already spent.
func (r *retryMiddleware) backoff(attempt int, remaining time.Duration) time.Duration {
	if remaining <= 0 {
		return -1
	}
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	if base > remaining {
		base = remaining
	}
	return base + r.jitter()
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
