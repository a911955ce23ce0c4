// Package providers implements provider-specific HTTP communication for the
// transport layer: request construction, response decoding, streaming
// consumption, and provider error mapping.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	"github.com/ahrav/bizcase/internal/llm/parse"
	"github.com/ahrav/bizcase/internal/llm/sse"
	"github.com/ahrav/bizcase/internal/llm/transport"
)

// streamReadChunk is the read size for incremental body consumption.
const streamReadChunk = 4096

// reasoningModelPrefixes identify model families that reject the temperature
// parameter and accept reasoning/verbosity hints instead.
var reasoningModelPrefixes = []string{"gpt-5", "o1", "o3", "o4"}

// OpenAIAdapter implements transport.ProviderAdapter for the responses API.
// It builds the outbound JSON body, consumes streamed or buffered responses,
// and maps provider errors onto the pipeline taxonomy.
type OpenAIAdapter struct {
	config configuration.ProviderConfig
	parser *parse.Parser
}

// NewOpenAIAdapter creates an adapter with default endpoint when none is
// configured.
func NewOpenAIAdapter(cfg configuration.ProviderConfig, parser *parse.Parser) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	return &OpenAIAdapter{config: cfg, parser: parser}
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string {
	return ProviderOpenAI
}

// isReasoningModel reports whether the model family rejects temperature.
func isReasoningModel(model string) bool {
	for _, prefix := range reasoningModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Build constructs the responses-API HTTP request from a normalized request.
// Temperature is omitted for model families that reject it; reasoning effort
// and verbosity hints are attached only when configured.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/responses", strings.TrimRight(a.config.Endpoint, "/"))

	body := map[string]any{
		"model":             req.Model,
		"input":             req.Input,
		"max_output_tokens": req.MaxOutputTokens,
		"stream":            req.Stream,
	}
	if req.Instructions != "" {
		body["instructions"] = req.Instructions
	}
	if req.Temperature != nil && !isReasoningModel(req.Model) {
		body["temperature"] = *req.Temperature
	}
	if isReasoningModel(req.Model) {
		if effort := firstNonEmpty(req.ReasoningEffort, a.config.ReasoningEffort); effort != "" {
			body["reasoning"] = map[string]any{"effort": effort}
		}
		if verbosity := firstNonEmpty(req.Verbosity, a.config.Verbosity); verbosity != "" {
			body["text"] = map[string]any{"verbosity": verbosity}
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", a.config.APIKey))
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse consumes the HTTP response into a normalized envelope. Streamed
// bodies are routed chunk-by-chunk through the stream assembler as bytes
// arrive; buffered bodies go through the full parser chain.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	if httpResp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, parseProviderError(httpResp, body)
	}

	if isEventStream(httpResp) {
		return a.consumeStream(httpResp.Body)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return a.parser.Parse(body)
}

// consumeStream feeds the body into the assembler incrementally, so partial
// output survives an early connection close.
func (a *OpenAIAdapter) consumeStream(body io.Reader) (*transport.Response, error) {
	assembler := sse.NewAssembler(a.parser)
	buf := make([]byte, streamReadChunk)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if consumeErr := assembler.Consume(buf[:n]); consumeErr != nil {
				return nil, consumeErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			// Finalize anyway: accumulated deltas may still yield a usable
			// partial envelope.
			if env, finErr := assembler.Finalize(); finErr == nil && !env.Empty() {
				env.Truncated = true
				return env, nil
			}
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
	}
	return assembler.Finalize()
}

func isEventStream(httpResp *http.Response) bool {
	return strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// retryAfterSeconds parses the Retry-After header as integer seconds.
func retryAfterSeconds(httpResp *http.Response) int {
	header := httpResp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
