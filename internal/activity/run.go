// Package activity bridges Temporal activity execution and the analysis
// orchestrator, reporting phase progress into the polling job store.
package activity

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/bizcase/internal/domain"
	"github.com/ahrav/bizcase/internal/jobs"
	"github.com/ahrav/bizcase/internal/workflow"
)

// Activities provides activity functions with proper dependency injection.
type Activities struct {
	orchestrator *workflow.Orchestrator
	store        *jobs.Store
}

// NewActivities creates an Activities instance. The job store may be nil when
// no poller needs progress, such as in workflow replay tests.
func NewActivities(orchestrator *workflow.Orchestrator, store *jobs.Store) *Activities {
	return &Activities{orchestrator: orchestrator, store: store}
}

// RunAnalysis executes one full analysis run. Transport-level retries happen
// inside the orchestrator's client; a run that still fails is surfaced as a
// non-retryable error so Temporal never replays it.
func (a *Activities) RunAnalysis(
	ctx context.Context,
	req workflow.AnalysisRequest,
) (*domain.AnalysisResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("starting analysis run", "job_id", req.JobID, "company", req.Input.Company)

	progress := func(step, message string, percent int) {
		if a.store != nil && req.JobID != "" {
			a.store.Progress(req.JobID, step, message, percent)
		}
		activity.RecordHeartbeat(ctx, step)
	}

	result, err := a.orchestrator.Run(ctx, req.Input, progress)
	if err != nil {
		if a.store != nil && req.JobID != "" {
			a.store.Fail(req.JobID, userSafeMessage(result))
		}
		logger.Error("analysis run failed", "job_id", req.JobID, "error", err)
		return result, temporal.NewNonRetryableApplicationError(
			"analysis run failed",
			"RunFailed",
			err,
		)
	}

	if a.store != nil && req.JobID != "" {
		a.store.Complete(req.JobID, result)
	}
	logger.Info("analysis run completed", "job_id", req.JobID, "run_id", result.RunID)
	return result, nil
}

// userSafeMessage extracts the sanitized failure message recorded on the run,
// falling back to a generic one when the run never produced a result.
func userSafeMessage(result *domain.AnalysisResult) string {
	if result != nil && result.Error != "" {
		return result.Error
	}
	return "analysis failed"
}
