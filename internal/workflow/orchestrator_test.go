package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/bizcase/internal/domain"
	"github.com/ahrav/bizcase/internal/llm"
	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
	"github.com/ahrav/bizcase/internal/llm/transport"
	"github.com/ahrav/bizcase/pkg/events"
)

// fakeClient serves canned envelopes per phase, read from request metadata.
type fakeClient struct {
	responses map[string]*transport.Response
	errs      map[string]error
	calls     []string
	panicOn   string
}

func (f *fakeClient) Generate(_ context.Context, req *transport.Request) (*transport.Response, error) {
	phase := req.Metadata["phase"]
	f.calls = append(f.calls, phase)
	if phase == f.panicOn {
		panic("handler blew up")
	}
	if err, ok := f.errs[phase]; ok {
		return nil, err
	}
	if resp, ok := f.responses[phase]; ok {
		return resp, nil
	}
	return &transport.Response{
		OutputText: "A generated analysis result with plenty of substance for " + phase + ".",
	}, nil
}

// fakeResearchStore is an in-memory ResearchStore.
type fakeResearchStore struct {
	entries map[string]map[string]any
	sets    int
}

func newFakeResearchStore() *fakeResearchStore {
	return &fakeResearchStore{entries: make(map[string]map[string]any)}
}

func (f *fakeResearchStore) key(company, industry, segment string) string {
	return company + "|" + industry + "|" + segment
}

func (f *fakeResearchStore) Get(_ context.Context, company, industry, segment string) (map[string]any, error) {
	if payload, ok := f.entries[f.key(company, industry, segment)]; ok {
		return payload, nil
	}
	return nil, llmerrors.ErrCacheMiss
}

func (f *fakeResearchStore) Set(_ context.Context, company, industry, segment string, payload map[string]any, _ ...time.Duration) error {
	f.entries[f.key(company, industry, segment)] = payload
	f.sets++
	return nil
}

type fakeROI struct {
	figures map[string]any
	err     error
}

func (f *fakeROI) Calculate(context.Context, domain.BusinessInput) (map[string]any, error) {
	return f.figures, f.err
}

func testInput() domain.BusinessInput {
	return domain.BusinessInput{
		Company:         "Acme Corp",
		Industry:        "Logistics",
		Segment:         "Enterprise",
		AnnualRevenue:   5_000_000,
		HeadCount:       120,
		InvestmentCents: 25_000_000,
	}
}

func newTestOrchestrator(client llm.Client, cache ResearchStore, roi ROICalculator, sink events.Sink) *Orchestrator {
	cfg := configuration.DefaultConfig()
	cfg.Workflow.HistoryLimit = 5
	return NewOrchestrator(cfg, client, cache, roi, sink)
}

func TestRun_AllPhasesSucceed(t *testing.T) {
	client := &fakeClient{
		responses: map[string]*transport.Response{
			PhaseEnrichment: {
				OutputText: `{"profile": "Acme Corp is a regional freight operator.", "company": "Acme Corp"}`,
			},
		},
	}
	cache := newFakeResearchStore()
	roi := &fakeROI{figures: map[string]any{"payback_months": float64(18), "summary": "18 month payback"}}

	orch := newTestOrchestrator(client, cache, roi, nil)
	result, err := orch.Run(context.Background(), testInput(), nil)

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Steps, 6)

	for _, step := range result.Steps {
		assert.Equal(t, domain.StepCompleted, step.Status)
		assert.Empty(t, step.Warnings, "step %s", step.Name)
		assert.False(t, step.CompletedAt.IsZero())
	}

	// Phases ran strictly in order.
	wantOrder := []string{PhaseEnrichment, PhaseRecommendation, PhaseMarketContext, PhaseFinalSynthesis, PhaseDataStructuring}
	assert.Equal(t, wantOrder, client.calls, "roi_calculation never touches the model")

	// The roi phase carries the collaborator's figures.
	roiResult := result.Phases[PhaseROICalculation]
	assert.False(t, roiResult.Fallback)
	assert.Equal(t, float64(18), roiResult.Data["payback_months"])

	// Structured JSON in phase text becomes phase data.
	assert.Equal(t, "Acme Corp is a regional freight operator.", result.Phases[PhaseEnrichment].Data["profile"])

	// Research phases were cached for the next run.
	assert.Equal(t, 1, cache.sets, "only the enrichment phase produced structured cacheable data")
}

func TestRun_AIDisabledDegradesEveryPhase(t *testing.T) {
	cfg := configuration.DefaultConfig()
	cfg.Features.AIDisabled = true
	sink := events.NewMemorySink()

	orch := NewOrchestrator(cfg, nil, nil, nil, sink)
	result, err := orch.Run(context.Background(), testInput(), nil)

	require.NoError(t, err)
	assert.True(t, result.Succeeded, "a fully degraded run still succeeds")
	require.Len(t, result.Steps, 6)

	for _, step := range result.Steps {
		assert.Equal(t, domain.StepCompleted, step.Status)
		require.NotEmpty(t, step.Warnings, "every degraded step records a warning")
		assert.Empty(t, step.Errors)
	}
	for name, pr := range result.Phases {
		assert.True(t, pr.Fallback, "phase %s", name)
	}

	// Fallbacks are built only from user-supplied fields.
	assert.Contains(t, result.Phases[PhaseEnrichment].Content, "Acme Corp")
	assert.Contains(t, result.Phases[PhaseEnrichment].Content, "Logistics")

	// Terminal event reports the degradation.
	published := sink.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeRunCompleted, published[0].Type)
}

func TestRun_PhaseFailureFallsBackWithWarning(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			PhaseMarketContext: &llmerrors.ParseError{Strategy: "brace_span", Message: "no object found"},
		},
	}
	orch := newTestOrchestrator(client, nil, &fakeROI{figures: map[string]any{}}, nil)

	result, err := orch.Run(context.Background(), testInput(), nil)

	require.NoError(t, err)
	assert.True(t, result.Succeeded, "a single failed phase never fails the run")

	var marketStep *domain.Step
	for i := range result.Steps {
		if result.Steps[i].Name == PhaseMarketContext {
			marketStep = &result.Steps[i]
		}
	}
	require.NotNil(t, marketStep)
	assert.Equal(t, domain.StepCompleted, marketStep.Status)
	require.Len(t, marketStep.Warnings, 1)
	assert.Empty(t, marketStep.Errors, "phase degradation is a warning, not an error")

	assert.True(t, result.Phases[PhaseMarketContext].Fallback)

	// Later phases still executed.
	assert.False(t, result.Phases[PhaseFinalSynthesis].Fallback)
}

func TestRun_EmptyEnvelopeTriggersFallback(t *testing.T) {
	// The response parsed but carried nothing usable, the moral equivalent of
	// the service answering "pong".
	client := &fakeClient{
		responses: map[string]*transport.Response{
			PhaseRecommendation: {OutputText: ""},
		},
	}
	orch := newTestOrchestrator(client, nil, &fakeROI{figures: map[string]any{}}, nil)

	result, err := orch.Run(context.Background(), testInput(), nil)

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, result.Phases[PhaseRecommendation].Fallback)
	assert.Equal(t, "defer", result.Phases[PhaseRecommendation].Data["recommendation"])
}

func TestRun_FatalConfigurationErrorAbortsRun(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			PhaseEnrichment: &llmerrors.ConfigurationError{Reason: "missing api key", Cause: llmerrors.ErrMissingCredentials},
		},
	}
	orch := newTestOrchestrator(client, nil, nil, nil)

	result, err := orch.Run(context.Background(), testInput(), nil)

	require.Error(t, err)
	assert.True(t, llmerrors.IsFatal(err))
	require.NotNil(t, result)
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.Error)

	// The failed step is preserved for diagnostics and nothing ran after it.
	require.Len(t, result.Steps, 1)
	assert.Equal(t, PhaseEnrichment, result.Steps[0].Name)
	assert.Equal(t, domain.StepFailed, result.Steps[0].Status)
	assert.NotEmpty(t, result.Steps[0].Errors)
}

func TestRun_InvalidInputRejected(t *testing.T) {
	orch := newTestOrchestrator(&fakeClient{}, nil, nil, nil)

	_, err := orch.Run(context.Background(), domain.BusinessInput{Industry: "Logistics"}, nil)

	require.Error(t, err)
	var valErr *llmerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestRun_PanicCapturedAsGenericFailure(t *testing.T) {
	client := &fakeClient{panicOn: PhaseRecommendation}
	orch := newTestOrchestrator(client, nil, &fakeROI{figures: map[string]any{}}, nil)

	result, err := orch.Run(context.Background(), testInput(), nil)

	require.ErrorIs(t, err, ErrRunFailed)
	require.NotNil(t, result)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "internal error during analysis", result.Error, "callers never see the raw panic")

	// Steps completed before the panic are preserved.
	assert.NotEmpty(t, result.Steps)

	// The failed run is still retained for diagnostics.
	assert.Equal(t, 1, orch.History().Len())
}

func TestRun_CacheHitSkipsModelCall(t *testing.T) {
	cache := newFakeResearchStore()
	cached := map[string]any{"profile": "Cached profile from an earlier run.", "company": "Acme Corp"}
	require.NoError(t, cache.Set(context.Background(), "Acme Corp", "Logistics", "Enterprise", cached))

	client := &fakeClient{}
	orch := newTestOrchestrator(client, cache, &fakeROI{figures: map[string]any{}}, nil)

	result, err := orch.Run(context.Background(), testInput(), nil)

	require.NoError(t, err)
	assert.NotContains(t, client.calls, PhaseEnrichment, "a cache hit must not re-invoke the service")
	assert.Equal(t, "Cached profile from an earlier run.", result.Phases[PhaseEnrichment].Content)
	assert.False(t, result.Phases[PhaseEnrichment].Fallback)
}

func TestRun_ROICalculatorErrorDegrades(t *testing.T) {
	orch := newTestOrchestrator(&fakeClient{}, nil, &fakeROI{err: errors.New("division by zero")}, nil)

	result, err := orch.Run(context.Background(), testInput(), nil)

	require.NoError(t, err)
	pr := result.Phases[PhaseROICalculation]
	assert.True(t, pr.Fallback)
	assert.Equal(t, float64(5_000_000), pr.Data["annual_revenue"])
}

func TestRun_ProgressReported(t *testing.T) {
	orch := newTestOrchestrator(&fakeClient{}, nil, &fakeROI{figures: map[string]any{}}, nil)

	type call struct {
		step    string
		percent int
	}
	var calls []call
	_, err := orch.Run(context.Background(), testInput(), func(step, _ string, percent int) {
		calls = append(calls, call{step, percent})
	})

	require.NoError(t, err)
	require.Len(t, calls, 7, "six phases plus the terminal notification")
	assert.Equal(t, PhaseEnrichment, calls[0].step)
	assert.Equal(t, call{"done", 100}, calls[6])

	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i].percent, calls[i-1].percent, "progress is monotonic")
	}
}

func TestRun_HistoryBounded(t *testing.T) {
	cfg := configuration.DefaultConfig()
	cfg.Workflow.HistoryLimit = 2
	orch := NewOrchestrator(cfg, &fakeClient{}, nil, &fakeROI{figures: map[string]any{}}, nil)

	var lastRunID string
	for i := 0; i < 4; i++ {
		result, err := orch.Run(context.Background(), testInput(), nil)
		require.NoError(t, err)
		lastRunID = result.RunID
	}

	assert.Equal(t, 2, orch.History().Len())
	recent := orch.History().Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, lastRunID, recent[0].RunID, "newest first")
}

func TestRun_CancelledContextFailsRun(t *testing.T) {
	orch := newTestOrchestrator(&fakeClient{}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := orch.Run(ctx, testInput(), nil)

	require.ErrorIs(t, err, ErrRunFailed)
	require.NotNil(t, result)
	assert.False(t, result.Succeeded)
}
