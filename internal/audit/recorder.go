package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	"github.com/ahrav/bizcase/pkg/events"
)

// Recorder subscribes to transport lifecycle events and persists one audit
// record per completed call. It registers on the event sink independently of
// the transport logic, so audit concerns never touch the request path.
type Recorder struct {
	store LogStore
	cfg   configuration.AuditConfig

	mu      sync.Mutex
	pending map[string]json.RawMessage // last request payload per run
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(store LogStore, cfg configuration.AuditConfig) *Recorder {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = configuration.DefaultMaxRequestBytes
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = configuration.DefaultMaxResponseBytes
	}
	return &Recorder{
		store:   store,
		cfg:     cfg,
		pending: make(map[string]json.RawMessage),
	}
}

// Append implements events.Sink. Request payloads are held until the
// matching response or failure event arrives, then flushed as one record.
func (r *Recorder) Append(ctx context.Context, envelope events.Envelope) error {
	switch envelope.Type {
	case events.TypeRequestSent:
		r.mu.Lock()
		r.pending[envelope.RunID] = envelope.Payload
		r.mu.Unlock()
		return nil

	case events.TypeResponseReceived, events.TypeRequestFailed:
		r.mu.Lock()
		request := r.pending[envelope.RunID]
		delete(r.pending, envelope.RunID)
		r.mu.Unlock()

		reqBody, reqTrimmed := EncodeBody(string(request), r.cfg.MaxRequestBytes)
		respBody, respTrimmed := EncodeBody(string(envelope.Payload), r.cfg.MaxResponseBytes)

		rec := Record{
			LogID:        uuid.New().String(),
			RequestJSON:  reqBody,
			ResponseJSON: respBody,
			IsTruncated:  reqTrimmed || respTrimmed,
			OriginalSize: len(request) + len(envelope.Payload),
			CreatedAt:    envelope.Timestamp,
		}

		var usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
			TotalTokens      int64 `json:"total_tokens"`
		}
		if err := json.Unmarshal(envelope.Payload, &usage); err == nil {
			rec.PromptTokens = usage.PromptTokens
			rec.CompletionTokens = usage.CompletionTokens
			rec.TotalTokens = usage.TotalTokens
		}

		return r.store.Append(ctx, rec)
	}
	return nil
}
