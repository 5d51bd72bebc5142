package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/storyforge-ai/storyforge/internal/agent"
)

const (
	activityTimeout = 60 * time.Second
)

// ContentPipelineWorkflow runs the configured phases in sequence, feeding
// each phase's summary into the next phase's context and advancing the
// project's workflow state as it goes.
func ContentPipelineWorkflow(ctx workflow.Context, input PipelineInput) (PipelineOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1, // agents carry their own retry and fallback
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	phases := input.Phases
	if len(phases) == 0 {
		phases = DefaultPhases()
	}

	output := PipelineOutput{PipelineID: input.PipelineID}
	var summaries []agent.PhaseSummary
	content := input.Content

	for _, phase := range phases {
		phaseInput := PhaseInput{
			PipelineID:     input.PipelineID,
			UserID:         input.UserID,
			ProjectID:      input.ProjectID,
			ConversationID: input.ConversationID,
			Phase:          phase,
			Content:        content,
			PreviousPhases: summaries,
		}

		var result PhaseResult
		err := workflow.ExecuteActivity(ctx, (*Activities).RunPhase, phaseInput).Get(ctx, &result)
		if err != nil {
			output.Error = err.Error()
			return output, err
		}
		output.Phases = append(output.Phases, result)

		summaries = append(summaries, agent.PhaseSummary{
			Phase:   phase,
			Summary: summarize(result.Content),
		})
		// Each phase works on the previous phase's output.
		content = result.Content

		update := ProjectUpdateInput{
			ProjectID: input.ProjectID,
			UserID:    input.UserID,
			Phase:     phase,
			Content:   result.Content,
		}
		// Best-effort: a failed project update never fails the pipeline.
		_ = workflow.ExecuteActivity(ctx, (*Activities).UpdateProjectPhase, update).Get(ctx, nil)
	}

	output.FinalContent = content
	return output, nil
}
