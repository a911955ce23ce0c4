// Package worker provides initialization helpers for Temporal workers,
// keeping the activity package focused on activity logic.
package worker

import (
	"fmt"

	"github.com/ahrav/bizcase/internal/audit"
	"github.com/ahrav/bizcase/internal/llm"
	"github.com/ahrav/bizcase/internal/llm/cache"
	"github.com/ahrav/bizcase/internal/llm/configuration"
	"github.com/ahrav/bizcase/internal/workflow"
	"github.com/ahrav/bizcase/pkg/events"
)

// Services bundles the long-lived dependencies one worker process owns.
type Services struct {
	Client       llm.Client
	Orchestrator *workflow.Orchestrator
	AuditStore   audit.LogStore
	Sink         events.Sink
}

// InitializeServices builds the LLM client, research cache, audit recorder,
// and orchestrator from configuration. Dependencies are returned for
// injection rather than set as global state.
func InitializeServices(cfg *configuration.Config, roi workflow.ROICalculator) (*Services, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}

	auditStore := audit.NewMemoryLogStore(0)
	sink := events.MultiSink{audit.NewRecorder(auditStore, cfg.Audit)}

	client, err := llm.NewClient(cfg, sink)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	var research workflow.ResearchStore
	if cfg.Cache.Enabled && cfg.Cache.RedisAddr != "" {
		research = cache.NewResearchCache(cache.NewRedisClient(cfg.Cache), cfg.Cache)
	}

	return &Services{
		Client:       client,
		Orchestrator: workflow.NewOrchestrator(cfg, client, research, roi, sink),
		AuditStore:   auditStore,
		Sink:         sink,
	}, nil
}
