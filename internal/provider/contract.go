// Package provider defines the opaque model-call collaborator the gateway
// invokes, plus the HTTP implementation for OpenAI-compatible endpoints.
package provider

import (
	"context"
	"fmt"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports the token counts of one completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a successful model call.
type Result struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// ModelCaller performs the actual third-party model call. Implementations
// must surface HTTP-style status codes via *StatusError so retry predicates
// can classify failures.
type ModelCaller interface {
	Call(ctx context.Context, model string, messages []Message, maxTokens int, temperature float64) (*Result, error)
}

// StatusError captures an HTTP status code from a provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Code, e.Body)
}

// StatusCode implements the retry package's StatusCoder.
func (e *StatusError) StatusCode() int { return e.Code }
