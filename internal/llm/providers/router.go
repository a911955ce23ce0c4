package providers

import (
	"errors"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	"github.com/ahrav/bizcase/internal/llm/parse"
	"github.com/ahrav/bizcase/internal/llm/transport"
)

// ProviderOpenAI is the canonical identifier for the OpenAI adapter.
const ProviderOpenAI = "openai"

// ErrNoAdapter indicates the router holds no adapter for the model.
var ErrNoAdapter = errors.New("no provider adapter configured")

// NewRouter creates a router over the configured provider adapter. The
// pipeline is provider-agnostic by construction; additional adapters slot in
// here without touching the transport layer.
func NewRouter(cfg configuration.ProviderConfig, parser *parse.Parser) transport.Router {
	return &router{adapter: NewOpenAIAdapter(cfg, parser)}
}

type router struct {
	adapter transport.ProviderAdapter
}

// Pick returns the adapter for the given model. Every model currently routes
// to the single configured adapter.
func (r *router) Pick(model string) (transport.ProviderAdapter, error) {
	if r.adapter == nil {
		return nil, ErrNoAdapter
	}
	return r.adapter, nil
}
