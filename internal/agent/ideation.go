package agent

import (
	"log/slog"
	"strings"

	"github.com/storyforge-ai/storyforge/internal/prompt"
)

// Ideation generates and develops story concepts with the writer.
type Ideation struct {
	*base
}

// NewIdeation constructs the ideation agent.
func NewIdeation(gateway CompletionService, prompts *prompt.Manager, logger *slog.Logger) *Ideation {
	return &Ideation{base: newBase(profile{
		agentType: PhaseIdeation,
		capabilities: Capabilities{
			Phases:               []string{PhaseIdeation},
			ContentTypes:         []string{"text"},
			Languages:            []string{"en"},
			MaxContextLength:     8000,
			EstimatedCostPerCall: 0.02,
		},
		systemPrompt:    ideationSystemPrompt,
		fallbackContent: "I couldn't reach the writing model just now. In the meantime: jot down three one-line story ideas, even rough ones, and pick the one that excites you most.",
		fallbackSuggestions: []Suggestion{
			{Type: SuggestionAction, Title: "Freewrite for five minutes", Description: "Set a timer and write whatever comes to mind about your topic without editing.", Priority: PriorityHigh},
			{Type: SuggestionQuestion, Title: "What if?", Description: "Ask a 'what if' question about your most ordinary idea and follow it somewhere strange.", Priority: PriorityMedium},
		},
		nextSteps: []string{"Pick one concept to develop", "Move to refinement when a premise feels solid"},
	}, gateway, prompts, logger)}
}

func ideationSystemPrompt(prefs UserPreferences) string {
	var sb strings.Builder
	sb.WriteString("You are a story ideation partner. Help the writer generate and explore concepts, premises, and hooks.")
	if len(prefs.Genres) > 0 {
		sb.WriteString(" The writer works in: " + strings.Join(prefs.Genres, ", ") + ".")
	}
	if prefs.Personality != "" {
		sb.WriteString(" Match a " + prefs.Personality + " tone.")
	}
	switch prefs.ExperienceLevel {
	case "beginner":
		sb.WriteString(" The writer is new to this. Offer concrete templates, worked examples, and step-by-step prompts.")
	case "advanced":
		sb.WriteString(" The writer is experienced. Skip the basics; challenge their assumptions and push for originality.")
	}
	return sb.String()
}
