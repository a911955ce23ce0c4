package transport

import (
	"context"
	"time"

	"github.com/ahrav/bizcase/pkg/events"
)

// NewEventsMiddleware publishes request lifecycle events to the given sink.
// Subscribers such as the audit logger register on the sink independently of
// the transport logic; emission failures never affect the request.
func NewEventsMiddleware(sink events.Sink, source string) Middleware {
	if sink == nil {
		sink = events.NoOpSink{}
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			runID := req.Metadata["run_id"]

			_ = sink.Append(ctx, events.New(events.TypeRequestSent, source, runID, map[string]any{
				"model":             req.Model,
				"max_output_tokens": req.MaxOutputTokens,
				"stream":            req.Stream,
				"input_chars":       len(req.Input),
			}))

			start := time.Now()
			resp, err := next.Handle(ctx, req)

			if err != nil {
				_ = sink.Append(ctx, events.New(events.TypeRequestFailed, source, runID, map[string]any{
					"model":      req.Model,
					"error":      err.Error(),
					"elapsed_ms": time.Since(start).Milliseconds(),
				}))
				return resp, err
			}

			_ = sink.Append(ctx, events.New(events.TypeResponseReceived, source, runID, map[string]any{
				"model":             req.Model,
				"output_chars":      len(resp.OutputText),
				"truncated":         resp.Truncated,
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
				"total_tokens":      resp.Usage.TotalTokens,
				"elapsed_ms":        time.Since(start).Milliseconds(),
			}))
			return resp, nil
		})
	}
}
