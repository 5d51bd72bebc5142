package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/storyforge-ai/storyforge/internal/llm"
	"github.com/storyforge-ai/storyforge/internal/prompt"
)

// lifecycle states
type lifecycle int

const (
	stateUninitialized lifecycle = iota
	stateInitialized
)

// profile is what a concrete agent contributes to the shared base: its type,
// its voice, and its degraded-mode content.
type profile struct {
	agentType    string
	capabilities Capabilities

	// systemPrompt builds the agent's persona section of the LLM system
	// context from the user's preferences.
	systemPrompt func(prefs UserPreferences) string

	// fallbackContent and fallbackSuggestions are served when the model call
	// fails outright.
	fallbackContent     string
	fallbackSuggestions []Suggestion
	nextSteps           []string
}

// base carries the lifecycle, validation, context building, and fallback
// behavior shared by every concrete agent.
type base struct {
	profile profile
	gateway CompletionService
	prompts *prompt.Manager
	logger  *slog.Logger
	nowFunc clock

	mu    sync.Mutex
	state lifecycle
}

func newBase(p profile, gateway CompletionService, prompts *prompt.Manager, logger *slog.Logger) *base {
	if logger == nil {
		logger = slog.Default()
	}
	return &base{
		profile: p,
		gateway: gateway,
		prompts: prompts,
		logger:  logger.With(slog.String("agent", p.agentType)),
		nowFunc: time.Now,
	}
}

func (b *base) Type() string               { return b.profile.agentType }
func (b *base) Capabilities() Capabilities { return b.profile.capabilities }

// Initialize is idempotent.
func (b *base) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateInitialized {
		return nil
	}
	if b.gateway == nil {
		return fmt.Errorf("agent %s: no completion service", b.profile.agentType)
	}
	b.state = stateInitialized
	b.logger.Info("agent initialized")
	return nil
}

// Cleanup returns the agent to its uninitialized state.
func (b *base) Cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateUninitialized
	b.logger.Info("agent cleaned up")
	return nil
}

func (b *base) initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateInitialized
}

// ValidateRequest checks the request against the agent's capabilities.
// Failures are logged, not returned as errors.
func (b *base) ValidateRequest(req Request) bool {
	reject := func(reason string) bool {
		b.logger.Warn("request rejected",
			slog.String("reason", reason),
			slog.String("user_id", req.UserID),
			slog.String("project_id", req.ProjectID),
		)
		return false
	}

	if req.UserID == "" || req.ProjectID == "" || req.ConversationID == "" {
		return reject("missing identifiers")
	}
	if req.Content == "" {
		return reject("empty content")
	}
	if max := b.profile.capabilities.MaxContextLength; max > 0 && len(req.Content) > max {
		return reject(fmt.Sprintf("content length %d exceeds limit %d", len(req.Content), max))
	}
	if phase := requestPhase(req); phase != "" && !b.profile.capabilities.HandlesPhase(phase) {
		return reject("phase " + phase + " outside capabilities")
	}
	return true
}

// requestPhase derives the phase a request targets; an explicit agent type
// wins, then the most recent completed phase's successor is unknowable here,
// so absent both we assume the agent's own phase.
func requestPhase(req Request) string {
	if req.AgentType != "" {
		return req.AgentType
	}
	return ""
}

// BuildContext assembles the LLM system context in fixed order: persona,
// prior phases, recent conversation, current project content.
func (b *base) BuildContext(req Request) string {
	var sb strings.Builder

	prefs := UserPreferences{}
	if req.Context != nil {
		prefs = req.Context.UserPreferences
	}
	sb.WriteString(b.profile.systemPrompt(prefs))

	if req.Context == nil {
		return sb.String()
	}

	if len(req.Context.PreviousPhases) > 0 {
		sb.WriteString("\n\nCompleted phases:\n")
		for _, ph := range req.Context.PreviousPhases {
			sb.WriteString("- " + ph.Phase + ": " + ph.Summary + "\n")
		}
	}

	if history := req.Context.ConversationHistory; len(history) > 0 {
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		sb.WriteString("\nRecent conversation:\n")
		for _, h := range history {
			sb.WriteString("[" + h.AgentType + "] " + h.LastMessage + "\n")
		}
	}

	if req.Context.ProjectContent != "" {
		sb.WriteString("\nCurrent project content:\n" + req.Context.ProjectContent)
	}

	return sb.String()
}

// ProcessRequest runs the full agent pipeline: validate, build context, call
// the gateway, parse. Budget and rate errors propagate unchanged; any other
// model-call failure degrades to the fallback response.
func (b *base) ProcessRequest(ctx context.Context, req Request) (*Response, error) {
	if !b.initialized() {
		if err := b.Initialize(); err != nil {
			return nil, err
		}
	}
	start := b.nowFunc()

	if !b.ValidateRequest(req) {
		return nil, &ValidationError{AgentType: b.profile.agentType}
	}

	systemContext := b.BuildContext(req)

	llmReq := llm.Request{
		UserID:    req.UserID,
		AgentType: b.profile.agentType,
		Prompt:    req.Content,
		Context:   systemContext,
	}

	// Template recommendation steers model parameters when the prompt
	// manager has data for this agent type.
	var templateID string
	if b.prompts != nil {
		if t, ok := b.prompts.RecommendedTemplate(b.profile.agentType, true); ok {
			templateID = t.ID
			llmReq.Model = t.Model
			llmReq.MaxTokens = t.MaxTokens
			llmReq.Temperature = t.Temperature
			if t.SystemContext != "" {
				llmReq.Context = t.SystemContext + "\n\n" + systemContext
			}
		}
	}

	llmResp, err := b.gateway.GenerateCompletion(ctx, llmReq)
	elapsed := float64(b.nowFunc().Sub(start).Milliseconds())

	if err != nil {
		if templateID != "" && b.prompts != nil {
			b.prompts.RecordPerformance(templateID, prompt.Outcome{ResponseTimeMs: elapsed})
		}
		// Caller-actionable gateway errors pass through untouched.
		var budgetErr *llm.BudgetExceededError
		var rateErr *llm.RateLimitError
		if errors.As(err, &budgetErr) || errors.As(err, &rateErr) {
			return nil, err
		}
		b.logger.Error("model call failed, serving fallback",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return b.fallbackResponse(elapsed), nil
	}

	if templateID != "" && b.prompts != nil {
		b.prompts.RecordPerformance(templateID, prompt.Outcome{
			Cost:           llmResp.Usage.CostUSD,
			Tokens:         llmResp.Usage.TotalTokens,
			ResponseTimeMs: elapsed,
			Success:        true,
		})
	}

	resp := parseCompletion(llmResp, elapsed)
	resp.Metadata.NextSteps = b.profile.nextSteps
	return resp, nil
}

// fallbackResponse is the degraded but well-formed answer served when the
// model is unreachable.
func (b *base) fallbackResponse(elapsedMs float64) *Response {
	suggestions := make([]Suggestion, len(b.profile.fallbackSuggestions))
	copy(suggestions, b.profile.fallbackSuggestions)
	for i := range suggestions {
		suggestions[i].ID = newSuggestionID()
	}
	return &Response{
		Content:     b.profile.fallbackContent,
		Suggestions: suggestions,
		Metadata: Metadata{
			ProcessingTimeMs: elapsedMs,
			Model:            fallbackModel,
			Confidence:       fallbackConfidence,
			NextSteps:        b.profile.nextSteps,
		},
	}
}

// HealthCheck passes only when the agent is initialized and the shared
// gateway is healthy.
func (b *base) HealthCheck(ctx context.Context) error {
	if !b.initialized() {
		return fmt.Errorf("agent %s: not initialized", b.profile.agentType)
	}
	return b.gateway.HealthCheck(ctx)
}

// ValidationError marks a request the agent refused before any model call.
type ValidationError struct {
	AgentType string
}

func (e *ValidationError) Error() string {
	return "agent " + e.AgentType + ": request failed validation"
}
