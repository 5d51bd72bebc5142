// Package agent implements the content-generation capabilities behind a
// uniform request/response contract. Each concrete agent serves one workflow
// phase; all of them run their model calls through the shared gateway.
package agent

import (
	"context"
	"time"

	"github.com/storyforge-ai/storyforge/internal/llm"
)

// Workflow phases. The agent type serving a phase carries the same name.
const (
	PhaseIdeation  = "ideation"
	PhaseRefiner   = "refiner"
	PhaseMedia     = "media"
	PhaseFactCheck = "factcheck"
)

// Request is one unit of agent work. Immutable once constructed.
type Request struct {
	UserID         string            `json:"user_id"`
	ProjectID      string            `json:"project_id"`
	ConversationID string            `json:"conversation_id"`
	AgentType      string            `json:"agent_type,omitempty"` // empty means infer from project phase
	Content        string            `json:"content"`
	Context        *Context          `json:"context,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Context is the read-only input an agent uses to build its system prompt.
type Context struct {
	PreviousPhases      []PhaseSummary  `json:"previous_phases,omitempty"`
	UserPreferences     UserPreferences `json:"user_preferences"`
	ProjectContent      string          `json:"project_content,omitempty"`
	ConversationHistory []HistoryEntry  `json:"conversation_history,omitempty"`
}

// UserPreferences shape the tone and depth of agent guidance.
type UserPreferences struct {
	Personality     string   `json:"personality,omitempty"`
	Genres          []string `json:"genres,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"` // beginner, intermediate, advanced
}

// PhaseSummary is the condensed outcome of a completed workflow phase.
type PhaseSummary struct {
	Phase   string `json:"phase"`
	Summary string `json:"summary"`
}

// HistoryEntry is one prior exchange in the conversation.
type HistoryEntry struct {
	AgentType   string `json:"agent_type"`
	LastMessage string `json:"last_message"`
}

// Capabilities declares what an agent instance may serve. An agent refuses
// any request outside its declared capabilities.
type Capabilities struct {
	Phases               []string `json:"phases"`
	ContentTypes         []string `json:"content_types"`
	Languages            []string `json:"languages"`
	MaxContextLength     int      `json:"max_context_length"`
	EstimatedCostPerCall float64  `json:"estimated_cost_per_call"`
}

// HandlesPhase reports whether the agent may serve the given phase.
func (c Capabilities) HandlesPhase(phase string) bool {
	for _, p := range c.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Response is the result of one processed request.
type Response struct {
	Content      string       `json:"content"`
	Suggestions  []Suggestion `json:"suggestions"`
	Metadata     Metadata     `json:"metadata"`
	PhaseOutputs []string     `json:"phase_outputs,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	TokenUsage       llm.Usage `json:"token_usage"`
	Model            string    `json:"model"`
	Confidence       float64   `json:"confidence"` // 0..1
	NextSteps        []string  `json:"next_steps,omitempty"`
}

// Suggestion kinds.
const (
	SuggestionAction      = "action"
	SuggestionQuestion    = "question"
	SuggestionResource    = "resource"
	SuggestionImprovement = "improvement"
	SuggestionAlternative = "alternative"
)

// Suggestion priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Suggestion is one actionable follow-up extracted from a response. IDs are
// unique within a response only.
type Suggestion struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CompletionService is the slice of the gateway agents depend on.
// llm.Gateway satisfies it.
type CompletionService interface {
	GenerateCompletion(ctx context.Context, req llm.Request) (*llm.Response, error)
	HealthCheck(ctx context.Context) error
}

// Agent is the uniform contract every capability implements.
type Agent interface {
	Type() string
	Capabilities() Capabilities

	// Initialize is idempotent; repeat calls are no-ops once initialized.
	Initialize() error
	// Cleanup releases agent-owned resources and returns the agent to its
	// uninitialized state.
	Cleanup() error

	ValidateRequest(req Request) bool
	ProcessRequest(ctx context.Context, req Request) (*Response, error)
	HealthCheck(ctx context.Context) error
}

// historyWindow bounds how many conversation entries go into the built
// context.
const historyWindow = 5

// fallbackModel marks responses produced without a model call.
const fallbackModel = "fallback"

// clock is aliased for test injection in the base agent.
type clock func() time.Time
