package llm

import "time"

// defaultModel is the model used when a request names none, and whose rate
// prices calls to models missing from the cost table.
const defaultModel = "gpt-4o-mini"

// costPerToken is the blended USD price per token by model.
var costPerToken = map[string]float64{
	"gpt-4":         0.00003,
	"gpt-4o":        0.00001,
	"gpt-4o-mini":   0.0000006,
	"claude-opus":   0.000045,
	"claude-sonnet": 0.000009,
	"claude-haiku":  0.000001,
}

// tokenCost computes the billed cost for a call. Unknown models fall back to
// the default model's rate rather than billing zero.
func tokenCost(model string, totalTokens int) float64 {
	rate, ok := costPerToken[model]
	if !ok {
		rate = costPerToken[defaultModel]
	}
	return float64(totalTokens) * rate
}

// cacheTTLs maps agent types to response cache lifetimes. Fact-checking and
// ideation results go stale fast; media briefs are expensive to regenerate.
var cacheTTLs = map[string]time.Duration{
	"factcheck": 5 * time.Minute,
	"ideation":  15 * time.Minute,
	"refiner":   30 * time.Minute,
	"media":     2 * time.Hour,
}

const defaultCacheTTL = 30 * time.Minute

func cacheTTLFor(agentType string) time.Duration {
	if ttl, ok := cacheTTLs[agentType]; ok {
		return ttl
	}
	return defaultCacheTTL
}
