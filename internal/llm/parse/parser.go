// Package parse extracts normalized response envelopes from whatever shape
// the provider returns: structured response objects, legacy chat completions,
// bare strings, or JSON wrapped in prose and Markdown fencing.
package parse

import (
	"encoding/json"
	"strings"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/transport"
)

// Parser applies the prioritized extraction strategies and the
// trivial-response filter.
type Parser struct {
	minChars        int
	phrases         []string // pre-lowercased
	maxOutputTokens int
}

// NewParser creates a parser from configuration. Zero thresholds fall back
// to defaults; the phrase list is matched case-insensitively.
func NewParser(cfg configuration.ParserConfig) *Parser {
	minChars := cfg.MinResponseChars
	if minChars <= 0 {
		minChars = configuration.DefaultMinResponseChars
	}
	phrases := cfg.TrivialPhrases
	if len(phrases) == 0 {
		phrases = configuration.DefaultTrivialPhrases()
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return &Parser{
		minChars:        minChars,
		phrases:         lowered,
		maxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Acceptable reports whether text passes the non-trivial check: at least the
// configured minimum length and free of known canned phrases. A trivial
// response indicates the service answered a different, smaller request.
func (p *Parser) Acceptable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < p.minChars {
		return false
	}
	lowered := strings.ToLower(trimmed)
	for _, phrase := range p.phrases {
		if strings.Contains(lowered, phrase) {
			return false
		}
	}
	return true
}

// Parse extracts an envelope from a completed response body using the full
// strategy chain: direct JSON, fenced block, outermost object span, and
// finally SSE re-assembly for bodies that are themselves event streams.
func (p *Parser) Parse(body []byte) (*transport.Response, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, &llmerrors.ParseError{Strategy: "direct", Message: "empty body"}
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		switch v := decoded.(type) {
		case map[string]any:
			return p.FromObject(v)
		case string:
			// A bare JSON string is treated as direct text, subject to the
			// trivial filter.
			env := &transport.Response{}
			if p.Acceptable(v) {
				env.OutputText = strings.TrimSpace(v)
			}
			return env, nil
		}
		return nil, &llmerrors.ParseError{
			Strategy: "direct",
			Message:  "body decodes to unsupported JSON shape",
		}
	}

	// Non-JSON text: the service sometimes answers with plain prose. Accept
	// it directly when it is not an embedded-JSON or SSE shape.
	if raw, err := p.ExtractJSON(trimmed); err == nil {
		return p.FromObject(raw)
	}

	if looksLikeEventStream(trimmed) {
		return p.parseEventStream([]byte(trimmed))
	}

	env := &transport.Response{}
	if p.Acceptable(trimmed) {
		env.OutputText = trimmed
		return env, nil
	}
	return env, nil
}

// FromBody parses the body strictly as whole-document JSON. Used as the
// stream assembler's last resort, where re-entering the SSE path would
// recurse.
func (p *Parser) FromBody(body []byte) (*transport.Response, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &llmerrors.ParseError{
			Strategy: "whole_body",
			Message:  "body is not a JSON object",
			Cause:    err,
		}
	}
	return p.FromObject(raw)
}

// FromObject extracts an envelope from a decoded response object. The
// priority order is the convenience output_text field, then the structured
// output walk, then the legacy chat-completions shape. Trivial candidates
// are rejected, leaving OutputText empty. Truncation is flagged as a signal,
// never an error.
func (p *Parser) FromObject(raw map[string]any) (*transport.Response, error) {
	env := &transport.Response{Raw: raw}
	if model, ok := raw["model"].(string); ok {
		env.Model = model
	}
	env.Usage = extractUsage(raw)

	var candidate string

	// Strategy 1: convenience field.
	if text, ok := raw["output_text"].(string); ok && p.Acceptable(text) {
		candidate = strings.TrimSpace(text)
	}

	// Strategy 2: structured walk over ordered content chunks. The second
	// pass collects reasoning and function calls as auxiliary data even when
	// the convenience field already supplied the text.
	if chunks, ok := raw["output"].([]any); ok {
		if candidate == "" {
			candidate = p.firstMessageText(chunks)
		}
		env.Reasoning = collectReasoning(chunks)
		env.FunctionCalls = collectFunctionCalls(chunks)
	}

	// Legacy chat-completions shape.
	if candidate == "" {
		if text := legacyChoiceText(raw); p.Acceptable(text) {
			candidate = strings.TrimSpace(text)
		}
	}

	env.OutputText = candidate
	env.Truncated = p.detectTruncation(raw, env.Usage)
	return env, nil
}

// firstMessageText returns the first message-typed chunk's text that passes
// the trivial filter.
func (p *Parser) firstMessageText(chunks []any) string {
	for _, c := range chunks {
		chunk, ok := c.(map[string]any)
		if !ok || chunk["type"] != "message" {
			continue
		}
		text := messageContentText(chunk)
		if p.Acceptable(text) {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// detectTruncation flags an incomplete status marker or output-token usage
// at or above the configured ceiling.
func (p *Parser) detectTruncation(raw map[string]any, usage transport.Usage) bool {
	if status, ok := raw["status"].(string); ok && status == "incomplete" {
		return true
	}
	if p.maxOutputTokens > 0 && usage.CompletionTokens >= int64(p.maxOutputTokens) {
		return true
	}
	return false
}

func messageContentText(chunk map[string]any) string {
	content, ok := chunk["content"].([]any)
	if !ok {
		if text, ok := chunk["content"].(string); ok {
			return text
		}
		return ""
	}
	var b strings.Builder
	for _, part := range content {
		pm, ok := part.(map[string]any)
		if !ok {
			continue
		}
		switch pm["type"] {
		case "output_text", "text", nil:
			if text, ok := pm["text"].(string); ok {
				b.WriteString(text)
			}
		}
	}
	return b.String()
}

func collectReasoning(chunks []any) []string {
	var out []string
	for _, c := range chunks {
		chunk, ok := c.(map[string]any)
		if !ok || chunk["type"] != "reasoning" {
			continue
		}
		if summary, ok := chunk["summary"].([]any); ok {
			for _, s := range summary {
				if sm, ok := s.(map[string]any); ok {
					if text, ok := sm["text"].(string); ok && text != "" {
						out = append(out, text)
					}
				}
			}
			continue
		}
		if text := messageContentText(chunk); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func collectFunctionCalls(chunks []any) []transport.FunctionCall {
	var out []transport.FunctionCall
	for _, c := range chunks {
		chunk, ok := c.(map[string]any)
		if !ok || chunk["type"] != "function_call" {
			continue
		}
		call := transport.FunctionCall{}
		if name, ok := chunk["name"].(string); ok {
			call.Name = name
		}
		if args, ok := chunk["arguments"].(string); ok {
			call.Arguments = args
		}
		if id, ok := chunk["call_id"].(string); ok {
			call.CallID = id
		}
		out = append(out, call)
	}
	return out
}

func legacyChoiceText(raw map[string]any) string {
	choices, ok := raw["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := message["content"].(string)
	return text
}

func extractUsage(raw map[string]any) transport.Usage {
	usage, ok := raw["usage"].(map[string]any)
	if !ok {
		return transport.Usage{}
	}
	u := transport.Usage{
		PromptTokens:     usageField(usage, "input_tokens", "prompt_tokens"),
		CompletionTokens: usageField(usage, "output_tokens", "completion_tokens"),
		TotalTokens:      usageField(usage, "total_tokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func usageField(usage map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if v, ok := usage[key].(float64); ok {
			return int64(v)
		}
	}
	return 0
}
