// Package events provides the event infrastructure the transport layer
// publishes to. Request lifecycle hooks are modeled as an explicit sink
// interface so subscribers (audit logging, metrics) register independently of
// the transport logic.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the transport and orchestrator.
const (
	// TypeRequestSent is published immediately before the HTTP call.
	TypeRequestSent = "llm.request_sent"

	// TypeResponseReceived is published after a successful parse.
	TypeResponseReceived = "llm.response_received"

	// TypeRequestFailed is published when a call fails after all retries.
	TypeRequestFailed = "llm.request_failed"

	// TypeRunCompleted is published when an analysis run reaches a terminal
	// state.
	TypeRunCompleted = "analysis.run_completed"
)

// Envelope wraps an event with consistent metadata for routing and
// correlation.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing. See the Type* constants.
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	Source string `json:"source"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// RunID correlates the event with one analysis run, when applicable.
	RunID string `json:"run_id,omitempty"`

	// Payload contains the event data as JSON. Schema varies by Type.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New constructs an envelope with a fresh ID and the current time, marshaling
// payload to JSON. A payload that fails to marshal is dropped rather than
// failing the emission.
func New(eventType, source, runID string, payload any) Envelope {
	env := Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}

// Sink receives emitted events. Implementations must return quickly; event
// delivery is best-effort and never fails the publishing operation.
type Sink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpSink discards all events. Used when event emission is disabled.
type NoOpSink struct{}

// Append implements Sink with no-op behavior.
func (NoOpSink) Append(context.Context, Envelope) error { return nil }

// MultiSink fans each event out to every registered sink. Delivery errors
// from one sink do not prevent delivery to the others; the first error is
// returned.
type MultiSink []Sink

// Append implements Sink.
func (m MultiSink) Append(ctx context.Context, envelope Envelope) error {
	var first error
	for _, s := range m {
		if err := s.Append(ctx, envelope); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemorySink retains appended events in order. Intended for tests and for
// in-process subscribers that drain the buffer.
type MemorySink struct {
	mu     sync.Mutex
	events []Envelope
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append implements Sink.
func (m *MemorySink) Append(_ context.Context, envelope Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, envelope)
	return nil
}

// Events returns a copy of all appended envelopes in emission order.
func (m *MemorySink) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.events))
	copy(out, m.events)
	return out
}
