// Package jobs tracks asynchronous analysis runs for polling clients. Each
// run is a single record replaced atomically on every update, so a reader
// never observes a half-written status.
package jobs

import (
	"sync"
	"time"

	"github.com/ahrav/bizcase/internal/domain"
)

// Status values a job moves through. A job is created pending and reaches
// exactly one terminal status.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Job is the point-in-time state of one analysis run as seen by pollers.
type Job struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Step      string                 `json:"step,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Percent   int                    `json:"percent"`
	Result    *domain.AnalysisResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// Store holds job records in memory. Updates replace the whole record under
// the lock; Get returns a copy so callers never share state with writers.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]Job)}
}

// Create registers a new pending job.
func (s *Store) Create(id string) Job {
	now := time.Now().UTC()
	job := Job{
		ID:        id,
		Status:    StatusPending,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()
	return job
}

// Progress replaces the job's step, message, and completion percentage.
// Progress on a terminal or unknown job is ignored.
func (s *Store) Progress(id, step, message string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	job.Step = step
	job.Message = message
	job.Percent = percent
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
}

// Complete marks the job finished with its result attached.
func (s *Store) Complete(id string, result *domain.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	job.Status = StatusCompleted
	job.Message = "analysis complete"
	job.Percent = 100
	job.Result = result
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
}

// Fail marks the job finished with an error message.
func (s *Store) Fail(id, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	job.Status = StatusError
	job.Message = "analysis failed"
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
}

// Get returns a copy of the job and whether it exists.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Delete removes the job record, typically after the poller has read a
// terminal status.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}
