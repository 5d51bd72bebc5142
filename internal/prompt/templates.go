package prompt

// Agent type keys shared with the agent package. Kept as plain strings so
// callers outside this package can pass their own types.
const (
	AgentIdeation    = "ideation"
	AgentRefiner     = "refiner"
	AgentMedia       = "media"
	AgentFactChecker = "factcheck"
)

// defaultTemplates is the built-in template set. Operators can replace or
// extend these at runtime through the Manager.
func defaultTemplates() []Template {
	return []Template{
		{
			ID:        "ideation-brainstorm-v1",
			AgentType: AgentIdeation,
			Template: "Brainstorm compelling angles for a piece about {{topic}}. " +
				"Consider the audience context: {{context}}. " +
				"Offer distinct directions, each with a one-line hook.",
			Variables:     []string{"topic", "context"},
			SystemContext: "You are a creative ideation partner for professional writers.",
			MaxTokens:     600,
			Temperature:   0.9,
			CostOptimized: false,
		},
		{
			ID:        "ideation-quick-v1",
			AgentType: AgentIdeation,
			Template: "List five short content ideas about {{topic}}. " +
				"One sentence each, no preamble.",
			Variables:     []string{"topic"},
			MaxTokens:     250,
			Temperature:   0.8,
			CostOptimized: true,
		},
		{
			ID:        "refiner-polish-v1",
			AgentType: AgentRefiner,
			Template: "Refine the following draft while preserving the author's voice:\n\n{{draft}}\n\n" +
				"Focus on {{focus}}. Return the revised text followed by a short change summary.",
			Variables:     []string{"draft", "focus"},
			SystemContext: "You are an experienced line editor.",
			MaxTokens:     1200,
			Temperature:   0.4,
			CostOptimized: false,
		},
		{
			ID:        "refiner-tighten-v1",
			AgentType: AgentRefiner,
			Template: "Tighten this passage without changing its meaning:\n\n{{draft}}",
			Variables:     []string{"draft"},
			MaxTokens:     600,
			Temperature:   0.3,
			CostOptimized: true,
		},
		{
			ID:        "media-concepts-v1",
			AgentType: AgentMedia,
			Template: "Propose visual and media concepts to accompany this content:\n\n{{content}}\n\n" +
				"Target format: {{format}}. Describe each concept concretely enough to brief a designer.",
			Variables:     []string{"content", "format"},
			SystemContext: "You are an art director translating editorial content into media briefs.",
			MaxTokens:     800,
			Temperature:   0.7,
			CostOptimized: false,
		},
		{
			ID:        "factcheck-claims-v1",
			AgentType: AgentFactChecker,
			Template: "Identify every checkable factual claim in the text below. " +
				"For each claim, state whether it is verifiable, questionable, or unsupported, " +
				"and what evidence would settle it.\n\n{{content}}",
			Variables:     []string{"content"},
			SystemContext: "You are a rigorous fact-checker. Flag uncertainty explicitly.",
			MaxTokens:     900,
			Temperature:   0.2,
			CostOptimized: true,
		},
	}
}
