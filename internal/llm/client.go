// Package llm provides a resilient client for the remote text-generation
// service. It composes the transport middleware chain: budgeted retries
// around the HTTP core, with request lifecycle events published per attempt
// for independent subscribers such as the audit logger.
//
// Architecture:
//   - Provider-agnostic request/response types with an adapter per provider
//   - Middleware chain for composable resilience and observability
//   - Incremental SSE consumption within a synchronous call
//   - Configuration and validation failures rejected before any attempt
package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/parse"
	"github.com/ahrav/bizcase/internal/llm/providers"
	"github.com/ahrav/bizcase/internal/llm/retry"
	"github.com/ahrav/bizcase/internal/llm/transport"
	"github.com/ahrav/bizcase/pkg/events"
)

// Client sends generation requests through the resilience pipeline.
type Client interface {
	Generate(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

type client struct {
	handler transport.Handler
	config  *configuration.Config
	logger  *slog.Logger
}

// NewClient builds the middleware pipeline from configuration. The events
// sink may be nil, disabling lifecycle emission.
func NewClient(cfg *configuration.Config, sink events.Sink) (Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	cfg.Resolve()

	parser := parse.NewParser(cfg.Parser)
	router := providers.NewRouter(cfg.Provider, parser)
	core := transport.NewHTTPHandler(cfg.HTTPClient, router)

	retryMW, err := retry.NewMiddlewareWithConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}

	// Retry outermost: each attempt is observable as its own request event.
	handler := transport.Chain(core,
		retryMW,
		transport.NewEventsMiddleware(sink, "llm-client"),
	)

	return &client{
		handler: handler,
		config:  cfg,
		logger:  slog.Default().With("component", "llm-client"),
	}, nil
}

// Generate performs one logical call with retries. Missing credentials, the
// AI-disabled flag, and empty input are configuration errors rejected before
// the first attempt; they are never retried.
func (c *client) Generate(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if c.config.Features.AIDisabled {
		return nil, &llmerrors.ConfigurationError{
			Reason: "AI generation disabled by feature flag",
			Cause:  llmerrors.ErrAIDisabled,
		}
	}
	if c.config.Provider.APIKey == "" {
		return nil, &llmerrors.ConfigurationError{
			Reason: "provider API key not configured",
			Cause:  llmerrors.ErrMissingCredentials,
		}
	}
	if strings.TrimSpace(req.Input) == "" {
		return nil, &llmerrors.ValidationError{
			Field:   "input",
			Message: "empty after trimming",
		}
	}

	call := req.Clone()
	if call.Model == "" {
		call.Model = c.config.Provider.Model
	}
	call.MaxOutputTokens = transport.ClampTokens(call.MaxOutputTokens, c.config.Retry.MinOutputTokens)

	return c.handler.Handle(ctx, call)
}
