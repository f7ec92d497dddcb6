package aipipeline

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Config holds Temporal connection settings (spec.md §4.8).
type Config struct {
	HostPort    string
	Namespace   string
	TaskQueue   string
	Concurrency int
}

// Manager owns the Temporal client and worker lifecycle for the AI
// summary pipeline.
type Manager struct {
	client client.Client
	worker worker.Worker
	cfg    Config
}

// New creates a Temporal client and worker, registering the workflow and
// its activities.
func New(cfg Config, acts *Activities) (*Manager, error) {
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = TaskQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultWorkerConcurrency
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client dial: %w", err)
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Concurrency,
	})

	w.RegisterWorkflow(GenerateSummaryWorkflow)
	w.RegisterActivity(acts.ResolveStructuredInput)
	w.RegisterActivity(acts.ComputeRiskFlags)
	w.RegisterActivity(acts.RenderSummary)
	w.RegisterActivity(acts.PersistSummary)
	w.RegisterActivity(acts.PublishStatus)

	return &Manager{client: c, worker: w, cfg: cfg}, nil
}

// Start begins the worker polling for tasks.
func (m *Manager) Start() error {
	return m.worker.Start()
}

// Client returns the Temporal client for enqueuing workflows.
func (m *Manager) Client() client.Client {
	return m.client
}

// TaskQueue returns the configured task queue name.
func (m *Manager) TaskQueue() string {
	return m.cfg.TaskQueue
}

// Stop gracefully stops the worker and closes the client.
func (m *Manager) Stop() {
	if m.worker != nil {
		m.worker.Stop()
	}
	if m.client != nil {
		m.client.Close()
	}
}
