package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/bizcase/internal/domain"
)

// TaskQueue is the Temporal task queue analysis workflows run on.
const TaskQueue = "bizcase-analysis"

// AnalysisRequest is the serializable input handed to AnalysisWorkflow.
// JobID links the run back to the polling record the caller watches.
type AnalysisRequest struct {
	JobID string               `json:"job_id"`
	Input domain.BusinessInput `json:"input"`
}

// AnalysisWorkflow executes one analysis run as a single activity. HTTP-level
// retries live inside the transport client, and a failed run is never
// replayed automatically, so activity retries are disabled. All workflow code
// must use workflow-safe APIs only.
func AnalysisWorkflow(
	ctx workflow.Context,
	req AnalysisRequest,
) (*domain.AnalysisResult, error) {
	// Version gate enables safe evolution and backward compatibility.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "analysis.v", workflow.DefaultVersion, currentVersion)

	if err := req.Input.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid analysis request",
			"Validation",
			err,
		)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result domain.AnalysisResult
	if err := workflow.ExecuteActivity(ctx, "RunAnalysis", req).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
