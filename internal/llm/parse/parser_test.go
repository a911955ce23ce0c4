package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
)

func newTestParser() *Parser {
	return NewParser(configuration.ParserConfig{
		MinResponseChars: 20,
		MaxOutputTokens:  8000,
	})
}

func TestAcceptable(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \n\t  ", false},
		{"below minimum length", "too short", false},
		{"exactly at threshold", "12345678901234567890", true},
		{"pong", "pong", false},
		{"canned greeting", "Hello! How can I help you today with your project?", false},
		{"canned assist variant", "Sure, how can I assist you with that request today?", false},
		{"substantive answer", "The company operates in the logistics industry with strong fundamentals.", true},
		{"case insensitive phrase match", "PONG", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Acceptable(tt.text))
		})
	}
}

func TestParse_TrivialBodyYieldsEmptyEnvelope(t *testing.T) {
	p := newTestParser()

	env, err := p.Parse([]byte("pong"))
	require.NoError(t, err)
	assert.True(t, env.Empty(), "a trivial body must yield an empty envelope, not an error")
}

func TestParse_PlainProseAccepted(t *testing.T) {
	p := newTestParser()
	prose := "Acme Logistics holds a defensible position in regional freight."

	env, err := p.Parse([]byte(prose))
	require.NoError(t, err)
	assert.Equal(t, prose, env.OutputText)
}

func TestParse_DirectJSONObject(t *testing.T) {
	p := newTestParser()
	body := `{
		"model": "gpt-5",
		"output_text": "A substantive business analysis result for the report.",
		"usage": {"input_tokens": 100, "output_tokens": 50}
	}`

	env, err := p.Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "A substantive business analysis result for the report.", env.OutputText)
	assert.Equal(t, "gpt-5", env.Model)
	assert.Equal(t, int64(100), env.Usage.PromptTokens)
	assert.Equal(t, int64(50), env.Usage.CompletionTokens)
	assert.Equal(t, int64(150), env.Usage.TotalTokens)
}

func TestParse_BareJSONStringFiltered(t *testing.T) {
	p := newTestParser()

	env, err := p.Parse([]byte(`"pong"`))
	require.NoError(t, err)
	assert.True(t, env.Empty())

	env, err = p.Parse([]byte(`"A full sentence carrying actual analysis content."`))
	require.NoError(t, err)
	assert.Equal(t, "A full sentence carrying actual analysis content.", env.OutputText)
}

func TestParse_StructuredOutputWalk(t *testing.T) {
	p := newTestParser()
	body := `{
		"output": [
			{"type": "reasoning", "summary": [{"text": "considered the revenue figures"}]},
			{"type": "message", "content": [
				{"type": "output_text", "text": "The recommendation is to proceed with the investment."}
			]},
			{"type": "function_call", "name": "lookup_market", "arguments": "{\"industry\":\"freight\"}", "call_id": "call_1"}
		]
	}`

	env, err := p.Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "The recommendation is to proceed with the investment.", env.OutputText)
	assert.Equal(t, []string{"considered the revenue figures"}, env.Reasoning)
	require.Len(t, env.FunctionCalls, 1)
	assert.Equal(t, "lookup_market", env.FunctionCalls[0].Name)
	assert.Equal(t, "call_1", env.FunctionCalls[0].CallID)
}

func TestParse_LegacyChatCompletionShape(t *testing.T) {
	p := newTestParser()
	body := `{
		"choices": [
			{"message": {"role": "assistant", "content": "Legacy-shaped completions still parse correctly."}}
		],
		"usage": {"prompt_tokens": 10, "completion_tokens": 12}
	}`

	env, err := p.Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "Legacy-shaped completions still parse correctly.", env.OutputText)
	assert.Equal(t, int64(22), env.Usage.TotalTokens)
}

func TestParse_FencedJSONExtracted(t *testing.T) {
	p := newTestParser()
	body := "Here is the structured result you asked for:\n\n" +
		"```json\n{\"output_text\": \"Extraction from a fenced markdown block works.\"}\n```\n\nLet me know."

	env, err := p.Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "Extraction from a fenced markdown block works.", env.OutputText)
}

func TestParse_BraceSpanExtracted(t *testing.T) {
	p := newTestParser()
	body := `The model says: {"output_text": "JSON embedded mid-prose is still recovered."} hope that helps`

	env, err := p.Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "JSON embedded mid-prose is still recovered.", env.OutputText)
}

func TestParse_EventStreamBodyReplayed(t *testing.T) {
	p := newTestParser()
	body := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Streamed bodies handed to \"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"the parser are reassembled.\"}\n\n" +
		"data: [DONE]\n"

	env, err := p.Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "Streamed bodies handed to the parser are reassembled.", env.OutputText)
}

func TestParse_EmptyBody(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse([]byte("   "))
	var parseErr *llmerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestFromObject_TruncationDetection(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{
			"incomplete status",
			map[string]any{"status": "incomplete"},
			true,
		},
		{
			"usage at ceiling",
			map[string]any{"usage": map[string]any{"output_tokens": float64(8000)}},
			true,
		},
		{
			"usage below ceiling",
			map[string]any{"usage": map[string]any{"output_tokens": float64(500)}},
			false,
		},
		{
			"completed status",
			map[string]any{"status": "completed"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := p.FromObject(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Truncated)
		})
	}
}

func TestFromObject_TrivialConvenienceFieldRejected(t *testing.T) {
	p := newTestParser()

	env, err := p.FromObject(map[string]any{"output_text": "pong"})
	require.NoError(t, err)
	assert.True(t, env.Empty())
}

func TestExtractJSON_StrategyOrder(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		body    string
		wantKey string
		wantErr bool
	}{
		{"direct", `{"result": "clean"}`, "result", false},
		{"fenced", "prefix\n```json\n{\"fenced\": true}\n```", "fenced", false},
		{"fenced without language tag", "```\n{\"plain\": 1}\n```", "plain", false},
		{"brace span", `noise {"embedded": "yes"} noise`, "embedded", false},
		{"no object", "just words, no structure", "", true},
		{"unbalanced braces", "start { not json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := p.ExtractJSON(tt.body)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, llmerrors.ErrNoExtractionStrategy)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, raw, tt.wantKey)
		})
	}
}

func TestUsageFieldAliases(t *testing.T) {
	p := newTestParser()

	env, err := p.FromObject(map[string]any{
		"usage": map[string]any{
			"prompt_tokens":     float64(7),
			"completion_tokens": float64(3),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), env.Usage.PromptTokens)
	assert.Equal(t, int64(3), env.Usage.CompletionTokens)
	assert.Equal(t, int64(10), env.Usage.TotalTokens)
}
