package workflow

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Config locates the Temporal service and names the task queue pipeline
// workflows run on.
type Config struct {
	HostPort  string
	Namespace string
	TaskQueue string
}

// Manager ties together the Temporal client and the worker that hosts the
// pipeline workflow plus its activities. One Manager per process.
type Manager struct {
	tc  client.Client
	wkr worker.Worker
	cfg Config
}

// NewManager dials Temporal and registers the pipeline workflow and
// activities on a new worker. The worker does not poll until Start.
func NewManager(cfg Config, acts *Activities) (*Manager, error) {
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client dial: %w", err)
	}

	wkr := worker.New(tc, cfg.TaskQueue, worker.Options{})
	wkr.RegisterWorkflow(ContentPipelineWorkflow)
	wkr.RegisterActivity(acts.RunPhase)
	wkr.RegisterActivity(acts.UpdateProjectPhase)

	return &Manager{tc: tc, wkr: wkr, cfg: cfg}, nil
}

// Start begins polling the task queue.
func (m *Manager) Start() error {
	return m.wkr.Start()
}

// ExecutePipeline runs one pipeline workflow to completion. The workflow ID
// is derived from the pipeline ID, so re-dispatching the same pipeline
// while it runs is rejected by the service rather than duplicated.
func (m *Manager) ExecutePipeline(ctx context.Context, input PipelineInput) (PipelineOutput, error) {
	opts := client.StartWorkflowOptions{
		ID:        "pipeline-" + input.PipelineID,
		TaskQueue: m.cfg.TaskQueue,
	}
	run, err := m.tc.ExecuteWorkflow(ctx, opts, ContentPipelineWorkflow, input)
	if err != nil {
		return PipelineOutput{}, fmt.Errorf("start pipeline workflow: %w", err)
	}

	var output PipelineOutput
	if err := run.Get(ctx, &output); err != nil {
		return PipelineOutput{}, fmt.Errorf("pipeline workflow: %w", err)
	}
	return output, nil
}

// Client exposes the underlying Temporal client.
func (m *Manager) Client() client.Client { return m.tc }

// TaskQueue reports the configured task queue name.
func (m *Manager) TaskQueue() string { return m.cfg.TaskQueue }

// Stop shuts down the worker, then the client.
func (m *Manager) Stop() {
	if m.wkr != nil {
		m.wkr.Stop()
	}
	if m.tc != nil {
		m.tc.Close()
	}
}
