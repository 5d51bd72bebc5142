package llm

import "time"

// Request is the gateway's unit of work.
type Request struct {
	UserID      string  `json:"user_id"`
	AgentType   string  `json:"agent_type"`
	Prompt      string  `json:"prompt"`
	Context     string  `json:"context,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage reports the tokens and cost of one completion.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Response is a completed (or cache-served) generation. RequestID is freshly
// generated per call and never reused, even when the payload came from cache.
type Response struct {
	Content   string `json:"content"`
	Usage     Usage  `json:"usage"`
	Model     string `json:"model"`
	RequestID string `json:"request_id"`
	Cached    bool   `json:"cached,omitempty"`
}

// BudgetStatus is derived from the usage ledger on every read; it is never
// stored.
type BudgetStatus struct {
	UserID             string  `json:"user_id"`
	CurrentSpendUSD    float64 `json:"current_spend_usd"`
	MonthlyBudgetUSD   float64 `json:"monthly_budget_usd"`
	IsOverBudget       bool    `json:"is_over_budget"`
	IsApproachingLimit bool    `json:"is_approaching_limit"`
	BudgetUsedPercent  float64 `json:"budget_used_percent"`
}

// UsageStats aggregates a user's ledger records.
type UsageStats struct {
	UserID        string             `json:"user_id"`
	TotalRequests int                `json:"total_requests"`
	TotalTokens   int                `json:"total_tokens"`
	TotalCostUSD  float64            `json:"total_cost_usd"`
	ByAgentType   map[string]int     `json:"by_agent_type"`
	CostByModel   map[string]float64 `json:"cost_by_model"`
	Since         time.Time          `json:"since,omitempty"`
}
