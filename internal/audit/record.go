// Package audit persists request/response pairs for replay and offline
// corruption remediation. Nothing here runs on the live request path; the
// guard operates over records an external log collaborator stored.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Record is one persisted request/response pair with usage accounting.
type Record struct {
	LogID              string    `json:"log_id"`
	RequestJSON        string    `json:"request_json"`
	ResponseJSON       string    `json:"response_json"`
	IsTruncated        bool      `json:"is_truncated"`
	OriginalSize       int       `json:"original_size"`
	CorruptionDetected bool      `json:"corruption_detected"`
	PromptTokens       int64     `json:"prompt_tokens"`
	CompletionTokens   int64     `json:"completion_tokens"`
	TotalTokens        int64     `json:"total_tokens"`
	CreatedAt          time.Time `json:"created_at"`
}

// LogStore is the external log collaborator boundary. Recent returns records
// newest first.
type LogStore interface {
	Append(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// maxPrefixProbes bounds how many closing positions EncodeBody examines when
// hunting for a valid JSON prefix in an oversized payload.
const maxPrefixProbes = 256

// EncodeBody enforces a payload size cap. Oversized bodies are trimmed to
// the last valid JSON prefix within the cap; the second return reports
// whether trimming occurred. When no valid prefix exists the raw truncation
// is kept so diagnostics retain as much of the payload as possible.
func EncodeBody(body string, capBytes int) (string, bool) {
	if capBytes <= 0 || len(body) <= capBytes {
		return body, false
	}
	cut := body[:capBytes]

	probes := 0
	for i := len(cut) - 1; i >= 0 && probes < maxPrefixProbes; i-- {
		switch cut[i] {
		case '}', ']', '"':
			probes++
			if json.Valid([]byte(cut[:i+1])) {
				return cut[:i+1], true
			}
		}
	}
	return cut, true
}

// MemoryLogStore is a bounded in-memory LogStore for tests and local runs.
// Production deployments supply a database-backed implementation.
type MemoryLogStore struct {
	mu      sync.Mutex
	records []Record
	limit   int
}

// NewMemoryLogStore creates a store retaining at most limit records.
func NewMemoryLogStore(limit int) *MemoryLogStore {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryLogStore{limit: limit}
}

// Append implements LogStore, evicting the oldest record past the bound.
func (m *MemoryLogStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.limit {
		m.records = m.records[len(m.records)-m.limit:]
	}
	return nil
}

// Recent implements LogStore, newest first.
func (m *MemoryLogStore) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]Record, 0, limit)
	for i := len(m.records) - 1; i >= len(m.records)-limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}
