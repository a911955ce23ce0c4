package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/sse"
	"github.com/ahrav/bizcase/internal/llm/transport"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON recovers a JSON object from a body that is not already clean
// structured JSON, for providers that wrap JSON in prose or Markdown fencing.
// Strategies, in order: direct parse, fenced block, outermost object span.
func (p *Parser) ExtractJSON(body string) (map[string]any, error) {
	trimmed := strings.TrimSpace(body)

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
		return raw, nil
	}

	if match := fencedJSONPattern.FindStringSubmatch(trimmed); match != nil {
		if err := json.Unmarshal([]byte(match[1]), &raw); err == nil {
			return raw, nil
		}
	}

	// Greedy outermost span: first opening brace to last closing brace.
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err == nil {
			return raw, nil
		}
	}

	return nil, &llmerrors.ParseError{
		Strategy: "brace_span",
		Message:  "no JSON object found in body",
		Cause:    llmerrors.ErrNoExtractionStrategy,
	}
}

// looksLikeEventStream reports whether the body uses SSE line framing.
func looksLikeEventStream(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, "data:") || strings.HasPrefix(line, "event:")
	}
	return false
}

// parseEventStream replays a buffered SSE body through the stream assembler.
// Finalize handles a last line without a trailing newline, so the
// whitespace-trimmed bodies callers hand in need no restoration.
func (p *Parser) parseEventStream(body []byte) (*transport.Response, error) {
	assembler := sse.NewAssembler(p)
	if err := assembler.Consume(body); err != nil {
		return nil, err
	}
	return assembler.Finalize()
}
