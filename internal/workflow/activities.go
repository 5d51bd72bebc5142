package workflow

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/events"
	"github.com/storyforge-ai/storyforge/internal/orchestrator"
	"github.com/storyforge-ai/storyforge/internal/store"
)

// summaryLimit bounds how much of a phase's output is carried into the next
// phase's context.
const summaryLimit = 400

// Activities holds dependencies for the pipeline activity implementations.
type Activities struct {
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	EventBus     *events.Bus
}

// RunPhase processes one pipeline phase through the orchestrator. It is also
// invoked directly by the dispatcher's in-process fallback, so heartbeating
// only happens under a real activity context.
func (a *Activities) RunPhase(ctx context.Context, input PhaseInput) (PhaseResult, error) {
	if activity.IsActivity(ctx) {
		activity.RecordHeartbeat(ctx, input.Phase)
	}

	req := agent.Request{
		UserID:         input.UserID,
		ProjectID:      input.ProjectID,
		ConversationID: input.ConversationID,
		AgentType:      input.Phase,
		Content:        input.Content,
		Context: &agent.Context{
			PreviousPhases: input.PreviousPhases,
		},
	}

	start := time.Now()
	resp, err := a.Orchestrator.ProcessRequest(ctx, req)
	latencyMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		return PhaseResult{}, fmt.Errorf("phase %s: %w", input.Phase, err)
	}

	if a.EventBus != nil {
		a.EventBus.Publish(events.Event{
			Type:       events.EventPipelinePhase,
			PipelineID: input.PipelineID,
			Phase:      input.Phase,
			ProjectID:  input.ProjectID,
			UserID:     input.UserID,
			LatencyMs:  latencyMs,
		})
	}

	return PhaseResult{
		Phase:       input.Phase,
		Content:     resp.Content,
		Model:       resp.Metadata.Model,
		Confidence:  resp.Metadata.Confidence,
		Suggestions: resp.Suggestions,
		LatencyMs:   latencyMs,
	}, nil
}

// UpdateProjectPhase advances the project's workflow state after a phase
// completes.
func (a *Activities) UpdateProjectPhase(ctx context.Context, input ProjectUpdateInput) error {
	if a.Store == nil {
		return nil
	}
	return a.Store.UpsertProject(ctx, store.Project{
		ID:           input.ProjectID,
		UserID:       input.UserID,
		CurrentPhase: input.Phase,
		Content:      input.Content,
		UpdatedAt:    time.Now().UTC(),
	})
}

// summarize condenses a phase's output for the next phase's context.
func summarize(content string) string {
	if len(content) <= summaryLimit {
		return content
	}
	return content[:summaryLimit] + "..."
}
