package agent

import (
	"log/slog"
	"strings"

	"github.com/storyforge-ai/storyforge/internal/prompt"
)

// Refiner improves structure, pacing, and prose of existing drafts.
type Refiner struct {
	*base
}

// NewRefiner constructs the refiner agent.
func NewRefiner(gateway CompletionService, prompts *prompt.Manager, logger *slog.Logger) *Refiner {
	return &Refiner{base: newBase(profile{
		agentType: PhaseRefiner,
		capabilities: Capabilities{
			Phases:               []string{PhaseRefiner},
			ContentTypes:         []string{"text"},
			Languages:            []string{"en"},
			MaxContextLength:     16000,
			EstimatedCostPerCall: 0.04,
		},
		systemPrompt:    refinerSystemPrompt,
		fallbackContent: "The editing model is unavailable right now. A useful manual pass: read your draft aloud and mark every sentence where you stumble; those are your first revision targets.",
		fallbackSuggestions: []Suggestion{
			{Type: SuggestionImprovement, Title: "Tighten openings", Description: "Cut the first paragraph of each scene and check whether anything is lost.", Priority: PriorityMedium},
			{Type: SuggestionAction, Title: "Read aloud", Description: "Read a page aloud and mark where the rhythm breaks.", Priority: PriorityHigh},
		},
		nextSteps: []string{"Apply the highest-priority edits", "Run a fact check before publishing"},
	}, gateway, prompts, logger)}
}

func refinerSystemPrompt(prefs UserPreferences) string {
	var sb strings.Builder
	sb.WriteString("You are a developmental editor. Improve the draft's structure, pacing, clarity, and prose while preserving the writer's voice.")
	if prefs.Personality != "" {
		sb.WriteString(" Give feedback in a " + prefs.Personality + " manner.")
	}
	switch prefs.ExperienceLevel {
	case "beginner":
		sb.WriteString(" Explain each suggested edit and why it helps; limit feedback to the three most important issues.")
	case "advanced":
		sb.WriteString(" Be direct and thorough; the writer wants every weakness surfaced.")
	}
	return sb.String()
}
