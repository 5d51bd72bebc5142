package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/storyforge-ai/storyforge/internal/llm"
)

// Parsing here is a deliberate heuristic over free text. Its contract is the
// documented scanning rules, not semantic correctness.

const (
	maxSuggestions     = 5
	baseConfidence     = 0.5
	fallbackConfidence = 0.3
)

var (
	structureRe = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*])\s+`)
	sentenceRe  = regexp.MustCompile(`[^.!?\n]+[.!?]`)
)

// actionCues mark a sentence as an actionable suggestion.
var actionCues = []string{
	"you could", "you should", "try ", "consider ", "it might help",
	"a good next step", "recommend",
}

func newSuggestionID() string {
	return uuid.NewString()
}

// parseCompletion turns a raw completion into an agent response with a
// confidence score and extracted suggestions.
func parseCompletion(resp *llm.Response, elapsedMs float64) *Response {
	return &Response{
		Content:     resp.Content,
		Suggestions: extractSuggestions(resp.Content),
		Metadata: Metadata{
			ProcessingTimeMs: elapsedMs,
			TokenUsage:       resp.Usage,
			Model:            resp.Model,
			Confidence:       scoreConfidence(resp.Content),
		},
	}
}

// scoreConfidence is higher for longer, structured, question-containing
// responses. Clamped to [0, 1].
func scoreConfidence(content string) float64 {
	score := baseConfidence
	if len(content) > 500 {
		score += 0.15
	}
	if len(content) > 1500 {
		score += 0.1
	}
	if structureRe.MatchString(content) {
		score += 0.15
	}
	if strings.Contains(content, "?") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// extractSuggestions scans the text for question and actionable sentences,
// capped at maxSuggestions.
func extractSuggestions(content string) []Suggestion {
	var out []Suggestion
	for _, raw := range sentenceRe.FindAllString(content, -1) {
		if len(out) == maxSuggestions {
			break
		}
		sentence := strings.TrimSpace(raw)
		if len(sentence) < 12 {
			continue
		}
		switch {
		case strings.HasSuffix(sentence, "?"):
			out = append(out, Suggestion{
				ID:          newSuggestionID(),
				Type:        SuggestionQuestion,
				Title:       truncate(sentence, 60),
				Description: sentence,
				Priority:    PriorityMedium,
			})
		case hasActionCue(sentence):
			out = append(out, Suggestion{
				ID:          newSuggestionID(),
				Type:        SuggestionAction,
				Title:       truncate(sentence, 60),
				Description: sentence,
				Priority:    PriorityMedium,
			})
		}
	}
	return out
}

func hasActionCue(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, cue := range actionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
