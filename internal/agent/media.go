package agent

import (
	"log/slog"
	"strings"

	"github.com/storyforge-ai/storyforge/internal/prompt"
)

// Media produces visual direction: cover concepts, illustration briefs,
// scene imagery descriptions.
type Media struct {
	*base
}

// NewMedia constructs the media agent.
func NewMedia(gateway CompletionService, prompts *prompt.Manager, logger *slog.Logger) *Media {
	return &Media{base: newBase(profile{
		agentType: PhaseMedia,
		capabilities: Capabilities{
			Phases:               []string{PhaseMedia},
			ContentTypes:         []string{"text", "image-brief"},
			Languages:            []string{"en"},
			MaxContextLength:     8000,
			EstimatedCostPerCall: 0.06,
		},
		systemPrompt:    mediaSystemPrompt,
		fallbackContent: "The media model is unavailable. While you wait, collect three reference images that capture the mood you want; concrete references make generated briefs far better.",
		fallbackSuggestions: []Suggestion{
			{Type: SuggestionResource, Title: "Build a mood board", Description: "Collect reference imagery for tone, palette, and composition before generating briefs.", Priority: PriorityMedium},
			{Type: SuggestionAction, Title: "Describe one key scene", Description: "Write a one-paragraph visual description of your story's most important moment.", Priority: PriorityHigh},
		},
		nextSteps: []string{"Review the generated briefs", "Iterate on the strongest concept"},
	}, gateway, prompts, logger)}
}

func mediaSystemPrompt(prefs UserPreferences) string {
	var sb strings.Builder
	sb.WriteString("You are a visual direction assistant. Produce detailed, concrete briefs for covers, illustrations, and scene imagery matching the story's tone.")
	if len(prefs.Genres) > 0 {
		sb.WriteString(" Genre context: " + strings.Join(prefs.Genres, ", ") + ".")
	}
	if prefs.ExperienceLevel == "beginner" {
		sb.WriteString(" Explain visual vocabulary (composition, palette, framing) as you use it.")
	}
	return sb.String()
}
