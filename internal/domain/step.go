package domain

import "time"

// StepStatus tracks the lifecycle of a single workflow step.
type StepStatus string

const (
	// StepPending indicates the step has been created but not started.
	StepPending StepStatus = "pending"

	// StepRunning indicates the step is currently executing.
	StepRunning StepStatus = "running"

	// StepCompleted indicates the step finished with a usable result,
	// either real or fallback-substituted.
	StepCompleted StepStatus = "completed"

	// StepFailed indicates the step terminated without a usable result.
	StepFailed StepStatus = "failed"
)

// Step records the execution of one analysis phase. A step is mutated only by
// the orchestrator while running and is treated as immutable once it reaches
// StepCompleted or StepFailed.
type Step struct {
	Name        string         `json:"name"`
	Status      StepStatus     `json:"status"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}

// Terminal reports whether the step has reached a final status.
func (s *Step) Terminal() bool {
	return s.Status == StepCompleted || s.Status == StepFailed
}

// AddWarning appends a warning unless the step is already terminal.
func (s *Step) AddWarning(msg string) {
	if s.Terminal() {
		return
	}
	s.Warnings = append(s.Warnings, msg)
}

// AddError appends an error unless the step is already terminal.
func (s *Step) AddError(msg string) {
	if s.Terminal() {
		return
	}
	s.Errors = append(s.Errors, msg)
}
