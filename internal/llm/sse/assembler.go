// Package sse reconstructs one logical response from a server-sent-event
// stream. The assembler is chunk-boundary independent: the same byte
// sequence yields the same envelope whether it arrives in one Consume call
// or split arbitrarily across many.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"

	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/transport"
)

// doneSentinel terminates the stream without data.
const doneSentinel = "[DONE]"

// EnvelopeBuilder converts captured stream state into a response envelope.
// Implemented by the response parser; the indirection keeps this package free
// of extraction policy.
type EnvelopeBuilder interface {
	FromObject(raw map[string]any) (*transport.Response, error)
	FromBody(body []byte) (*transport.Response, error)
	Acceptable(text string) bool
}

// Assembler is a stateful accumulator fed one chunk at a time. It maintains
// an internal line buffer because provider chunk boundaries need not align
// with event boundaries.
type Assembler struct {
	builder EnvelopeBuilder

	lineBuf bytes.Buffer // partial-line carry between chunks
	rawBody bytes.Buffer // full body copy for the last-resort parse

	eventType string // from the most recent event: line
	done      bool

	output      strings.Builder
	reasoning   []string
	finalObject map[string]any
	finalText   string
	usage       transport.Usage
}

// NewAssembler creates an assembler that finalizes envelopes through the
// given builder.
func NewAssembler(builder EnvelopeBuilder) *Assembler {
	return &Assembler{builder: builder}
}

// Consume appends a received chunk and processes every complete line it
// closes. Malformed data lines are skipped rather than failing the stream.
func (a *Assembler) Consume(chunk []byte) error {
	a.rawBody.Write(chunk)
	a.lineBuf.Write(chunk)

	for {
		idx := bytes.IndexByte(a.lineBuf.Bytes(), '\n')
		if idx < 0 {
			return nil
		}
		line := string(a.lineBuf.Next(idx + 1))
		a.processLine(strings.TrimRight(line, "\r\n"))
	}
}

func (a *Assembler) processLine(line string) {
	if a.done {
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		// Blank line closes the current event frame.
		a.eventType = ""
		return
	}

	if rest, ok := strings.CutPrefix(line, "event:"); ok {
		a.eventType = strings.TrimSpace(rest)
		return
	}

	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return
	}
	payload := strings.TrimSpace(rest)
	if payload == doneSentinel {
		a.done = true
		return
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return
	}
	a.dispatch(decoded)
}

// dispatch routes one decoded event payload by its type discriminator,
// falling back to the event: line when the payload carries none. The legacy
// non-typed chat shape is recognized by its choices array.
func (a *Assembler) dispatch(payload map[string]any) {
	if choices, ok := payload["choices"].([]any); ok {
		a.dispatchLegacy(payload, choices)
		return
	}

	typ, _ := payload["type"].(string)
	if typ == "" {
		typ = a.eventType
	}

	switch {
	case typ == "response.done" || typ == "response.completed":
		if respObj, ok := payload["response"].(map[string]any); ok {
			a.finalObject = respObj
		} else {
			a.finalObject = payload
		}
	case strings.HasSuffix(typ, ".output_text.done") || strings.HasSuffix(typ, ".content_part.done"):
		if text := deltaText(payload); text != "" {
			a.finalText = text
		}
	case strings.HasSuffix(typ, ".output_text.delta") || strings.HasSuffix(typ, ".content_part.delta"):
		a.output.WriteString(deltaText(payload))
	case strings.HasSuffix(typ, ".reasoning.delta"):
		if text := deltaText(payload); text != "" {
			a.reasoning = append(a.reasoning, text)
		}
	}

	if usage, ok := payload["usage"].(map[string]any); ok {
		a.captureUsage(usage)
	}
}

func (a *Assembler) dispatchLegacy(payload map[string]any, choices []any) {
	if len(choices) == 0 {
		return
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return
	}
	if delta, ok := first["delta"].(map[string]any); ok {
		if content, ok := delta["content"].(string); ok {
			a.output.WriteString(content)
		}
		return
	}
	if _, ok := first["message"]; ok {
		// A full message is a terminal event in the legacy shape.
		a.finalObject = payload
	}
}

// Finalize produces the assembled envelope. It prefers the terminal response
// object, merging in accumulated deltas where the terminal object lacks
// content; otherwise it synthesizes from deltas alone; otherwise it attempts
// a whole-body JSON parse before failing.
func (a *Assembler) Finalize() (*transport.Response, error) {
	// A stream closed by the peer may end without a trailing newline; the
	// residual buffer is still one complete line.
	if a.lineBuf.Len() > 0 {
		a.processLine(a.lineBuf.String())
		a.lineBuf.Reset()
	}

	accumulated := a.output.String()

	if a.finalObject != nil {
		env, err := a.builder.FromObject(a.finalObject)
		if err == nil {
			if env.OutputText == "" {
				switch {
				case a.finalText != "":
					env.OutputText = a.finalText
				case accumulated != "":
					env.OutputText = accumulated
				}
			}
			if len(env.Reasoning) == 0 && len(a.reasoning) > 0 {
				env.Reasoning = a.reasoning
			}
			if env.Usage.TotalTokens == 0 && a.usage.TotalTokens > 0 {
				env.Usage = a.usage
			}
			return env, nil
		}
	}

	text := a.finalText
	if text == "" {
		text = accumulated
	}
	if text != "" {
		return &transport.Response{
			OutputText: text,
			Reasoning:  a.reasoning,
			Usage:      a.usage,
		}, nil
	}

	if env, err := a.builder.FromBody(bytes.TrimSpace(a.rawBody.Bytes())); err == nil {
		return env, nil
	}

	return nil, &llmerrors.ParseError{
		Strategy: "stream",
		Message:  "stream ended without content",
		Cause:    llmerrors.ErrStreamIncomplete,
	}
}

// deltaText extracts the text carried by a delta or done event, accepting
// both the bare-string and object-wrapped delta encodings.
func deltaText(payload map[string]any) string {
	switch delta := payload["delta"].(type) {
	case string:
		return delta
	case map[string]any:
		if text, ok := delta["text"].(string); ok {
			return text
		}
	}
	if text, ok := payload["text"].(string); ok {
		return text
	}
	if part, ok := payload["part"].(map[string]any); ok {
		if text, ok := part["text"].(string); ok {
			return text
		}
	}
	return ""
}

func (a *Assembler) captureUsage(usage map[string]any) {
	get := func(keys ...string) int64 {
		for _, key := range keys {
			if v, ok := usage[key].(float64); ok {
				return int64(v)
			}
		}
		return 0
	}
	u := transport.Usage{
		PromptTokens:     get("input_tokens", "prompt_tokens"),
		CompletionTokens: get("output_tokens", "completion_tokens"),
		TotalTokens:      get("total_tokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if u.TotalTokens > 0 {
		a.usage = u
	}
}
