package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/bizcase/internal/activity"
	"github.com/ahrav/bizcase/internal/jobs"
	"github.com/ahrav/bizcase/internal/workflow"
)

// RegisterAll registers the analysis workflow and its activity with the
// Temporal worker. Must be called once during worker initialization, before
// the worker starts; registration is not thread-safe.
func RegisterAll(w sdkworker.Worker, services *Services, store *jobs.Store) {
	activities := activity.NewActivities(services.Orchestrator, store)

	w.RegisterWorkflow(workflow.AnalysisWorkflow)
	w.RegisterActivity(activities.RunAnalysis)
}
