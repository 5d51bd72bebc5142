package store

import (
	"context"
	"time"
)

// Store defines the persistence interface for storyforge. The pipeline treats
// it as an external collaborator: the usage ledger is the single source of
// truth for spend, and conversations/messages record what each agent said.
type Store interface {
	// Usage ledger (append-only; idempotent by request ID).
	AppendUsage(ctx context.Context, rec UsageRecord) error
	SumUserCost(ctx context.Context, userID string, since time.Time) (float64, error)
	ListUsage(ctx context.Context, userID string, f UsageFilter) ([]UsageRecord, error)

	// Conversations and messages.
	CreateConversation(ctx context.Context, c Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	AppendMessage(ctx context.Context, m Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// Projects (phase state drives agent-type inference).
	UpsertProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id string) (*Project, error)

	// Schema lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// UsageRecord is one billed model call. Records are never updated or deleted
// by the normal flow; budget checks sum them per user and period.
type UsageRecord struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	AgentType        string    `json:"agent_type"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
}

// UsageFilter narrows ListUsage results.
type UsageFilter struct {
	AgentType string
	Model     string
	Since     time.Time
	Limit     int
}

// Conversation groups the messages exchanged within one project thread.
type Conversation struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is a single turn in a conversation. Role is "user" or "agent".
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	AgentType      string    `json:"agent_type,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Project holds the workflow state used to pick an agent when the caller
// does not name one.
type Project struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	CurrentPhase string    `json:"current_phase"`
	Content      string    `json:"content,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
