// Command worker runs the Temporal worker that executes analysis runs.
package main

import (
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/bizcase/internal/jobs"
	"github.com/ahrav/bizcase/internal/llm/configuration"
	"github.com/ahrav/bizcase/internal/worker"
	"github.com/ahrav/bizcase/internal/workflow"
)

func main() {
	logger := slog.Default().With("component", "worker")

	cfg := configuration.FromProvider(configuration.NewEnvProvider("BIZCASE"))

	hostPort := os.Getenv("TEMPORAL_HOST_PORT")
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	tc, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		logger.Error("failed to dial temporal", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	services, err := worker.InitializeServices(cfg, nil)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	w := sdkworker.New(tc, workflow.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, services, jobs.NewStore())

	logger.Info("worker starting", "task_queue", workflow.TaskQueue)
	if err := w.Run(sdkworker.InterruptCh()); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
