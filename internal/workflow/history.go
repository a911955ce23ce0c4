package workflow

import (
	"sync"

	"github.com/ahrav/bizcase/internal/domain"
)

// History retains the step trails of the most recent runs for diagnostics.
// Once the limit is reached the oldest run is discarded on every append.
type History struct {
	mu    sync.Mutex
	limit int
	runs  []*domain.AnalysisResult
}

// NewHistory creates a history bounded to limit runs. A non-positive limit
// disables retention entirely.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Add records a finished run, evicting the oldest if over the limit.
func (h *History) Add(result *domain.AnalysisResult) {
	if h == nil || h.limit <= 0 || result == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, result)
	if len(h.runs) > h.limit {
		h.runs = h.runs[len(h.runs)-h.limit:]
	}
}

// Recent returns up to n retained runs, newest first.
func (h *History) Recent(n int) []*domain.AnalysisResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.runs) {
		n = len(h.runs)
	}
	out := make([]*domain.AnalysisResult, 0, n)
	for i := len(h.runs) - 1; i >= len(h.runs)-n; i-- {
		out = append(out, h.runs[i])
	}
	return out
}

// Len returns the number of retained runs.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.runs)
}
