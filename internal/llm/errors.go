package llm

import (
	"fmt"
	"time"
)

// BudgetExceededError is returned when a user's monthly spend has reached
// their budget. It is caller-actionable and never retried.
type BudgetExceededError struct {
	UserID    string
	BudgetUSD float64
	SpentUSD  float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("monthly budget exceeded for user %s: budget=$%.2f, spent=$%.4f",
		e.UserID, e.BudgetUSD, e.SpentUSD)
}

// RateLimitError is returned when a user has exhausted their request window.
type RateLimitError struct {
	UserID string
	Limit  int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for user %s: %d requests per %s",
		e.UserID, e.Limit, e.Window)
}
