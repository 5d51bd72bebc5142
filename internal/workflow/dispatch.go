package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/circuitbreaker"
	"github.com/storyforge-ai/storyforge/internal/events"
)

// Dispatcher runs pipelines through Temporal when it is configured and
// healthy, and falls back to running the phases in-process otherwise. The
// circuit breaker decides which path a run takes.
type Dispatcher struct {
	manager *Manager // nil means Temporal is not configured
	acts    *Activities
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. manager may be nil; every run then
// executes in-process.
func NewDispatcher(manager *Manager, acts *Activities, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		manager: manager,
		acts:    acts,
		logger:  logger,
	}
	d.breaker = circuitbreaker.New(circuitbreaker.WithOnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("pipeline dispatch breaker state change",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}))
	return d
}

// Run executes one pipeline and returns its output. The input's PipelineID
// is assigned when empty.
func (d *Dispatcher) Run(ctx context.Context, input PipelineInput) (PipelineOutput, error) {
	if input.PipelineID == "" {
		input.PipelineID = uuid.NewString()
	}
	if len(input.Phases) == 0 {
		input.Phases = DefaultPhases()
	}

	d.publish(events.Event{
		Type:       events.EventPipelineStarted,
		PipelineID: input.PipelineID,
		ProjectID:  input.ProjectID,
		UserID:     input.UserID,
	})

	output, err := d.dispatch(ctx, input)

	finished := events.Event{
		Type:       events.EventPipelineFinished,
		PipelineID: input.PipelineID,
		ProjectID:  input.ProjectID,
		UserID:     input.UserID,
	}
	if err != nil {
		finished.ErrorMsg = err.Error()
	}
	d.publish(finished)

	return output, err
}

func (d *Dispatcher) dispatch(ctx context.Context, input PipelineInput) (PipelineOutput, error) {
	if d.manager != nil && d.breaker.Allow() {
		output, err := d.manager.ExecutePipeline(ctx, input)
		if err == nil {
			d.breaker.RecordSuccess()
			return output, nil
		}
		d.breaker.RecordFailure()
		d.logger.Warn("workflow service dispatch failed, running in-process",
			slog.String("pipeline_id", input.PipelineID),
			slog.String("error", err.Error()),
		)
	}
	return d.runInProcess(ctx, input)
}

// runInProcess mirrors ContentPipelineWorkflow without the workflow service:
// phases run sequentially through the orchestrator in this process.
func (d *Dispatcher) runInProcess(ctx context.Context, input PipelineInput) (PipelineOutput, error) {
	output := PipelineOutput{PipelineID: input.PipelineID}
	var summaries []agent.PhaseSummary
	content := input.Content

	for _, phase := range input.Phases {
		result, err := d.acts.RunPhase(ctx, PhaseInput{
			PipelineID:     input.PipelineID,
			UserID:         input.UserID,
			ProjectID:      input.ProjectID,
			ConversationID: input.ConversationID,
			Phase:          phase,
			Content:        content,
			PreviousPhases: summaries,
		})
		if err != nil {
			output.Error = err.Error()
			return output, err
		}
		output.Phases = append(output.Phases, result)
		summaries = append(summaries, agent.PhaseSummary{Phase: phase, Summary: summarize(result.Content)})
		content = result.Content

		if err := d.acts.UpdateProjectPhase(ctx, ProjectUpdateInput{
			ProjectID: input.ProjectID,
			UserID:    input.UserID,
			Phase:     phase,
			Content:   result.Content,
		}); err != nil {
			d.logger.Warn("project phase update failed",
				slog.String("project_id", input.ProjectID),
				slog.String("error", err.Error()),
			)
		}
	}

	output.FinalContent = content
	return output, nil
}

// BreakerState exposes the dispatch breaker's state for health reporting.
func (d *Dispatcher) BreakerState() circuitbreaker.State {
	return d.breaker.CurrentState()
}

func (d *Dispatcher) publish(e events.Event) {
	if d.acts != nil && d.acts.EventBus != nil {
		d.acts.EventBus.Publish(e)
	}
}
