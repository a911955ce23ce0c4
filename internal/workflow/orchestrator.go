// Package workflow sequences the business-case analysis into ordered phases,
// degrading each phase to a deterministic fallback when the model call fails
// so a run always produces a usable report.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/bizcase/internal/domain"
	"github.com/ahrav/bizcase/internal/llm"
	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/transport"
	"github.com/ahrav/bizcase/pkg/events"
)

// ErrRunFailed is the generic failure returned when a run aborts for any
// reason the orchestrator did not anticipate. Full detail stays in the step
// trail; callers never see raw internal errors.
var ErrRunFailed = errors.New("analysis run failed")

// ResearchStore is the cache surface the orchestrator consults before
// invoking the model for company research phases.
type ResearchStore interface {
	Get(ctx context.Context, company, industry, segment string) (map[string]any, error)
	Set(ctx context.Context, company, industry, segment string, payload map[string]any, ttl ...time.Duration) error
}

// ROICalculator computes return-on-investment figures from the user-supplied
// inputs. The formulas are owned by the implementation; the orchestrator only
// passes inputs through and attaches the output to the roi_calculation phase.
type ROICalculator interface {
	Calculate(ctx context.Context, input domain.BusinessInput) (map[string]any, error)
}

// ProgressFunc receives phase transitions for callers that surface progress,
// such as the job store feeding pollers.
type ProgressFunc func(step, message string, percent int)

// Orchestrator executes analysis runs. Each run owns its own state; a single
// Orchestrator serves concurrent runs sharing only the cache and history.
type Orchestrator struct {
	cfg     *configuration.Config
	client  llm.Client
	cache   ResearchStore
	roi     ROICalculator
	sink    events.Sink
	history *History
	logger  *slog.Logger
}

// NewOrchestrator wires an orchestrator. cache, roi, and sink may be nil:
// a nil cache skips lookups, a nil roi degrades the roi_calculation phase to
// its fallback, and a nil sink disables event emission.
func NewOrchestrator(
	cfg *configuration.Config,
	client llm.Client,
	cache ResearchStore,
	roi ROICalculator,
	sink events.Sink,
) *Orchestrator {
	if sink == nil {
		sink = events.NoOpSink{}
	}
	return &Orchestrator{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		roi:     roi,
		sink:    sink,
		history: NewHistory(cfg.Workflow.HistoryLimit),
		logger:  slog.Default().With("component", "workflow_orchestrator"),
	}
}

// History exposes the bounded trail of completed runs.
func (o *Orchestrator) History() *History { return o.history }

// Run executes all phases in order and returns the assembled result. Phases
// that fail degrade to fallbacks with warnings; only configuration and
// validation problems, or an escaped panic, fail the whole run. On run
// failure the partial result (with its step trail) is still returned
// alongside ErrRunFailed.
func (o *Orchestrator) Run(
	ctx context.Context,
	input domain.BusinessInput,
	progress ProgressFunc,
) (result *domain.AnalysisResult, err error) {
	if progress == nil {
		progress = func(string, string, int) {}
	}
	if verr := input.Validate(); verr != nil {
		return nil, &llmerrors.ValidationError{Field: "input", Message: verr.Error()}
	}

	runID := uuid.New().String()
	result = &domain.AnalysisResult{
		RunID:     runID,
		Input:     input,
		Phases:    make(map[string]domain.PhaseResult),
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.With("run_id", runID, "company", input.Company)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis run panicked", "panic", r)
			result.Succeeded = false
			result.Error = "internal error during analysis"
			err = ErrRunFailed
		}
		result.EndedAt = time.Now().UTC()
		o.history.Add(result)
		o.emitCompleted(ctx, result)
	}()

	for _, ph := range phases() {
		if ctx.Err() != nil {
			result.Error = "analysis canceled"
			return result, fmt.Errorf("%w: %w", ErrRunFailed, ctx.Err())
		}

		progress(ph.name, ph.message, ph.percent)
		step := domain.Step{
			Name:      ph.name,
			Status:    domain.StepRunning,
			StartedAt: time.Now().UTC(),
		}

		pr, warning, fatal := o.runPhase(ctx, ph, runID, input, result.Phases)
		if fatal != nil {
			step.AddError(fatal.Error())
			step.Status = domain.StepFailed
			step.CompletedAt = time.Now().UTC()
			result.Steps = append(result.Steps, step)
			result.Error = "analysis could not start: " + fatal.Error()
			logger.Error("phase aborted run", "phase", ph.name, "error", fatal)
			return result, fatal
		}
		if warning != "" {
			step.AddWarning(warning)
			logger.Warn("phase degraded to fallback", "phase", ph.name, "reason", warning)
		}

		step.Result = pr.Data
		step.Status = domain.StepCompleted
		step.CompletedAt = time.Now().UTC()
		result.Phases[ph.name] = pr
		result.Steps = append(result.Steps, step)
	}

	result.Succeeded = true
	progress("done", "analysis complete", 100)
	logger.Info("analysis run completed", "phases", len(result.Phases))
	return result, nil
}

// runPhase produces the phase result. It returns a non-empty warning when the
// fallback was substituted, and a non-nil fatal error only for configuration
// or validation failures that make continuing pointless.
func (o *Orchestrator) runPhase(
	ctx context.Context,
	ph phaseSpec,
	runID string,
	input domain.BusinessInput,
	prior map[string]domain.PhaseResult,
) (domain.PhaseResult, string, error) {
	if ph.local {
		return o.runLocalPhase(ctx, ph, input, prior)
	}

	if o.cfg.Features.AIDisabled || o.client == nil {
		return ph.fallback(input, prior), "ai disabled, deterministic fallback substituted", nil
	}

	if ph.cached && o.cache != nil {
		if payload, err := o.cache.Get(ctx, input.Company, input.Industry, phaseCacheScope(ph.name, input)); err == nil {
			return domain.PhaseResult{
				Phase:   ph.name,
				Content: stringField(payload, "profile", "summary", "content"),
				Data:    payload,
			}, "", nil
		} else if !errors.Is(err, llmerrors.ErrCacheMiss) {
			o.logger.Warn("cache lookup failed", "phase", ph.name, "error", err)
		}
	}

	req := transport.BuildRequest(
		[]domain.Message{{Role: domain.RoleUser, Content: ph.prompt(input, prior)}},
		transport.DefaultSystemPrompt,
	)
	req.Metadata = map[string]string{"run_id": runID, "phase": ph.name}

	resp, err := o.client.Generate(ctx, req)
	if err != nil {
		if llmerrors.IsFatal(err) {
			return domain.PhaseResult{}, "", err
		}
		return ph.fallback(input, prior), fmt.Sprintf("%s call failed: %v", ph.name, err), nil
	}
	if resp.Empty() {
		return ph.fallback(input, prior), ph.name + " returned no usable content", nil
	}

	pr := domain.PhaseResult{
		Phase:   ph.name,
		Content: resp.OutputText,
		Data:    structuredData(resp.OutputText),
	}

	if ph.cached && o.cache != nil && len(pr.Data) > 0 {
		if err := o.cache.Set(ctx, input.Company, input.Industry, phaseCacheScope(ph.name, input), pr.Data); err != nil {
			o.logger.Warn("cache store failed", "phase", ph.name, "error", err)
		}
	}
	return pr, "", nil
}

// runLocalPhase handles phases computed from collaborators instead of the
// model, currently only roi_calculation.
func (o *Orchestrator) runLocalPhase(
	ctx context.Context,
	ph phaseSpec,
	input domain.BusinessInput,
	prior map[string]domain.PhaseResult,
) (domain.PhaseResult, string, error) {
	if o.roi == nil {
		return ph.fallback(input, prior), "no roi calculator configured", nil
	}
	figures, err := o.roi.Calculate(ctx, input)
	if err != nil {
		return ph.fallback(input, prior), fmt.Sprintf("roi calculation failed: %v", err), nil
	}
	return domain.PhaseResult{
		Phase:   ph.name,
		Content: stringField(figures, "summary"),
		Data:    figures,
	}, "", nil
}

func (o *Orchestrator) emitCompleted(ctx context.Context, result *domain.AnalysisResult) {
	fallbacks := 0
	for _, pr := range result.Phases {
		if pr.Fallback {
			fallbacks++
		}
	}
	_ = o.sink.Append(ctx, events.New(events.TypeRunCompleted, "workflow_orchestrator", result.RunID, map[string]any{
		"succeeded":   result.Succeeded,
		"phases":      len(result.Phases),
		"fallbacks":   fallbacks,
		"duration_ms": result.EndedAt.Sub(result.StartedAt).Milliseconds(),
	}))
}

// phaseCacheScope distinguishes cache entries of different phases for the
// same company. Enrichment keys on the user segment; market context keys on
// the phase itself so both can coexist.
func phaseCacheScope(phase string, input domain.BusinessInput) string {
	if phase == PhaseEnrichment {
		return input.Segment
	}
	return phase
}

// structuredData extracts a JSON object embedded in phase text, tolerating
// surrounding prose. Returns nil when no object is present.
func structuredData(text string) map[string]any {
	trimmed := strings.TrimSpace(text)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &data); err != nil {
		return nil
	}
	return data
}

func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
