// Package domain defines the core types shared across the business-case
// analysis pipeline: analysis inputs, conversation messages, phase results,
// and the per-run step trail.
package domain

import (
	"strings"
	"time"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleUser marks content supplied by the end user.
	RoleUser MessageRole = "user"

	// RoleSystem marks operator-supplied instructions.
	RoleSystem MessageRole = "system"

	// RoleAssistant marks model-produced content.
	RoleAssistant MessageRole = "assistant"
)

// Message is a single entry in the prompt history handed to the request
// builder. Entries with an unknown role or empty content are skipped during
// request construction rather than rejected.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// BusinessInput carries the user-supplied facts an analysis run starts from.
// Every deterministic fallback is built exclusively from these fields, so the
// pipeline can always degrade to a templated result.
type BusinessInput struct {
	Company     string `json:"company"`
	Industry    string `json:"industry"`
	Segment     string `json:"segment"`
	Description string `json:"description,omitempty"`

	// Figures the ROI collaborator consumes. The orchestrator passes them
	// through untouched; their semantics are owned by the collaborator.
	AnnualRevenue   float64 `json:"annual_revenue,omitempty"`
	HeadCount       int     `json:"head_count,omitempty"`
	InvestmentCents int64   `json:"investment_cents,omitempty"`
}

// Validate reports whether the input identifies a subject to analyze.
func (b *BusinessInput) Validate() error {
	if strings.TrimSpace(b.Company) == "" {
		return ErrCompanyRequired
	}
	if strings.TrimSpace(b.Industry) == "" {
		return ErrIndustryRequired
	}
	return nil
}

// PhaseResult holds the outcome of one analysis phase. Content is the
// model-extracted (or fallback-templated) text; Data carries any structured
// payload the phase produced.
type PhaseResult struct {
	Phase    string         `json:"phase"`
	Content  string         `json:"content,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Fallback bool           `json:"fallback"`
}

// AnalysisResult is the end-to-end output of one orchestrator run.
type AnalysisResult struct {
	RunID     string                 `json:"run_id"`
	Input     BusinessInput          `json:"input"`
	Phases    map[string]PhaseResult `json:"phases"`
	Steps     []Step                 `json:"steps"`
	Succeeded bool                   `json:"succeeded"`
	Error     string                 `json:"error,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   time.Time              `json:"ended_at"`
}
