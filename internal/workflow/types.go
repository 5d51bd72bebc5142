// Package workflow runs multi-phase content pipelines through Temporal, with
// an in-process fallback guarded by a circuit breaker when the workflow
// service is unavailable.
package workflow

import (
	"github.com/storyforge-ai/storyforge/internal/agent"
)

// DefaultPhases is the standard pipeline: brainstorm, refine, verify.
func DefaultPhases() []string {
	return []string{agent.PhaseIdeation, agent.PhaseRefiner, agent.PhaseFactCheck}
}

// PipelineInput starts one content pipeline run.
type PipelineInput struct {
	PipelineID     string   `json:"pipeline_id"`
	UserID         string   `json:"user_id"`
	ProjectID      string   `json:"project_id"`
	ConversationID string   `json:"conversation_id"`
	Content        string   `json:"content"`
	Phases         []string `json:"phases,omitempty"` // empty means DefaultPhases
}

// PhaseInput is the input for the RunPhase activity.
type PhaseInput struct {
	PipelineID     string               `json:"pipeline_id"`
	UserID         string               `json:"user_id"`
	ProjectID      string               `json:"project_id"`
	ConversationID string               `json:"conversation_id"`
	Phase          string               `json:"phase"`
	Content        string               `json:"content"`
	PreviousPhases []agent.PhaseSummary `json:"previous_phases,omitempty"`
}

// PhaseResult is the output of one completed phase.
type PhaseResult struct {
	Phase       string             `json:"phase"`
	Content     string             `json:"content"`
	Model       string             `json:"model"`
	Confidence  float64            `json:"confidence"`
	Suggestions []agent.Suggestion `json:"suggestions,omitempty"`
	LatencyMs   float64            `json:"latency_ms"`
}

// ProjectUpdateInput is the input for the UpdateProjectPhase activity.
type ProjectUpdateInput struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Phase     string `json:"phase"`
	Content   string `json:"content"`
}

// PipelineOutput is the result of a full pipeline run.
type PipelineOutput struct {
	PipelineID   string        `json:"pipeline_id"`
	Phases       []PhaseResult `json:"phases"`
	FinalContent string        `json:"final_content"`
	Error        string        `json:"error,omitempty"`
}
