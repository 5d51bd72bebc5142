package agent

import (
	"log/slog"
	"strings"

	"github.com/storyforge-ai/storyforge/internal/prompt"
)

// FactCheck reviews drafts for factual claims that need verification.
type FactCheck struct {
	*base
}

// NewFactCheck constructs the fact-checking agent.
func NewFactCheck(gateway CompletionService, prompts *prompt.Manager, logger *slog.Logger) *FactCheck {
	return &FactCheck{base: newBase(profile{
		agentType: PhaseFactCheck,
		capabilities: Capabilities{
			Phases:               []string{PhaseFactCheck},
			ContentTypes:         []string{"text"},
			Languages:            []string{"en"},
			MaxContextLength:     16000,
			EstimatedCostPerCall: 0.03,
		},
		systemPrompt:    factCheckSystemPrompt,
		fallbackContent: "The fact-checking model is unavailable. Manual fallback: highlight every specific number, date, name, and place in your draft; those are the claims most worth verifying against a primary source.",
		fallbackSuggestions: []Suggestion{
			{Type: SuggestionAction, Title: "Mark verifiable claims", Description: "Highlight every concrete claim (dates, figures, names) for later verification.", Priority: PriorityHigh},
			{Type: SuggestionResource, Title: "Prefer primary sources", Description: "Verify highlighted claims against primary sources rather than aggregators.", Priority: PriorityMedium},
		},
		nextSteps: []string{"Resolve flagged claims", "Re-run the check after edits"},
	}, gateway, prompts, logger)}
}

func factCheckSystemPrompt(prefs UserPreferences) string {
	var sb strings.Builder
	sb.WriteString("You are a fact-checking assistant. Identify factual claims in the draft, classify each as verified, doubtful, or unverifiable, and say what source would settle it. Never invent sources.")
	if prefs.ExperienceLevel == "beginner" {
		sb.WriteString(" Explain why each flagged claim matters.")
	}
	return sb.String()
}
