// Package transport defines the provider-agnostic request/response types and
// the composable Handler/Middleware pipeline the LLM client is built from.
package transport

import (
	"strings"
	"time"

	"github.com/ahrav/bizcase/internal/domain"
	"github.com/ahrav/bizcase/internal/llm/configuration"
)

// DefaultSystemPrompt is used when a caller supplies no instructions.
const DefaultSystemPrompt = "You are a business analyst. Answer precisely and " +
	"ground every claim in the information provided."

// Request represents a normalized request to the text-generation provider.
// The retry middleware copies and mutates MaxOutputTokens and Timeout across
// attempts; everything else is immutable for the life of one logical call.
type Request struct {
	// Model specifies the exact model version to use.
	Model string `json:"model"`

	// Instructions carries the system prompt.
	Instructions string `json:"instructions,omitempty"`

	// Input is the concatenated user prompt. Non-empty after sanitization.
	Input string `json:"input"`

	// MaxOutputTokens bounds the response size, clamped to
	// [MinOutputTokens, configuration.MaxOutputTokenCeiling].
	MaxOutputTokens int `json:"max_output_tokens"`

	// Temperature is omitted for model families that reject it.
	Temperature *float64 `json:"temperature,omitempty"`

	// ReasoningEffort and Verbosity are model-family specific request hints.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Verbosity       string `json:"verbosity,omitempty"`

	// Stream requests server-sent-event delivery.
	Stream bool `json:"stream"`

	// Timeout is this attempt's deadline. Zero means the HTTP client default.
	Timeout time.Duration `json:"timeout"`

	// Metadata carries correlation fields for logging and events.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a shallow copy safe for per-attempt mutation.
func (r *Request) Clone() *Request {
	cp := *r
	return &cp
}

// Usage tracks reported token consumption for one response.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// FunctionCall is an auxiliary tool-invocation chunk extracted from a
// structured response body.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id,omitempty"`
}

// Response is the assembled envelope for one provider response, whether it
// arrived streamed or buffered. OutputText is either empty or has passed the
// non-trivial check.
type Response struct {
	OutputText    string         `json:"output_text"`
	Reasoning     []string       `json:"reasoning,omitempty"`
	FunctionCalls []FunctionCall `json:"function_calls,omitempty"`
	Raw           map[string]any `json:"raw,omitempty"`
	Truncated     bool           `json:"truncated"`
	Usage         Usage          `json:"usage"`
	Model         string         `json:"model,omitempty"`
}

// Empty reports whether the envelope carries no usable text.
func (r *Response) Empty() bool {
	return r == nil || strings.TrimSpace(r.OutputText) == ""
}

// BuildRequest assembles a Request from a prompt history and an optional
// system prompt. All user-role message contents are concatenated one per
// line into Input; malformed entries are silently skipped. Always succeeds
// on well-formed input.
func BuildRequest(history []domain.Message, systemPrompt string) *Request {
	var lines []string
	for _, msg := range history {
		if msg.Role != domain.RoleUser {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		lines = append(lines, content)
	}

	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	return &Request{
		Instructions:    systemPrompt,
		Input:           strings.Join(lines, "\n"),
		MaxOutputTokens: configuration.DefaultMaxOutputTokens,
	}
}

// ClampTokens bounds a token budget to [minTokens, MaxOutputTokenCeiling].
// A non-positive minTokens falls back to the configured default floor.
func ClampTokens(tokens, minTokens int) int {
	if minTokens <= 0 {
		minTokens = configuration.DefaultMinOutputTokens
	}
	if tokens < minTokens {
		return minTokens
	}
	if tokens > configuration.MaxOutputTokenCeiling {
		return configuration.MaxOutputTokenCeiling
	}
	return tokens
}
