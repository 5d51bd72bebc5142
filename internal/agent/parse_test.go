package agent

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestScoreConfidence(t *testing.T) {
	short := "Fine."
	if got := scoreConfidence(short); got != baseConfidence {
		t.Errorf("plain short text should score base, got %f", got)
	}

	structured := strings.Repeat("filler text ", 50) + "\n1. First point.\n2. Second point.\nWhat do you think?"
	if got := scoreConfidence(structured); got <= baseConfidence {
		t.Errorf("structured text should score above base, got %f", got)
	}

	huge := strings.Repeat("a detailed paragraph. ", 200) + "\n- bullet\nAny questions? "
	if got := scoreConfidence(huge); got > 1 {
		t.Errorf("confidence must be clamped to 1, got %f", got)
	}
}

func TestExtractSuggestions_CapAndTypes(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("You could expand the opening scene with more sensory detail. ")
	}
	got := extractSuggestions(sb.String())
	if len(got) != maxSuggestions {
		t.Fatalf("expected cap of %d suggestions, got %d", maxSuggestions, len(got))
	}
	for _, s := range got {
		if s.Type != SuggestionAction {
			t.Errorf("action cue should yield action type, got %s", s.Type)
		}
	}
}

func TestExtractSuggestions_Questions(t *testing.T) {
	text := "The premise is strong. What drives your protagonist to stay? Keep the pacing tight."
	got := extractSuggestions(text)
	var questions int
	for _, s := range got {
		if s.Type == SuggestionQuestion {
			questions++
		}
	}
	if questions != 1 {
		t.Errorf("expected 1 question suggestion, got %d", questions)
	}
}

func TestExtractSuggestions_IgnoresShortFragments(t *testing.T) {
	if got := extractSuggestions("Try it. Ok? No."); len(got) != 0 {
		t.Errorf("fragments under the length floor must be skipped, got %d", len(got))
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
	}{
		{"ascii", strings.Repeat("a", 80), 60},
		{"multibyte at cut", strings.Repeat("e", 55) + "héros à l'écran", 60},
		{"cjk", strings.Repeat("物語の続きを考える", 10), 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.in, tc.limit)
			if len(got) > tc.limit {
				t.Errorf("len %d exceeds limit %d", len(got), tc.limit)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncation split a rune: %q", got)
			}
			if !strings.HasSuffix(got, "...") {
				t.Errorf("expected ellipsis suffix, got %q", got)
			}
		})
	}

	if got := truncate("short", 60); got != "short" {
		t.Errorf("strings under the limit must pass through, got %q", got)
	}
}
