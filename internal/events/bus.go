package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventRequestCompleted EventType = "request_completed"
	EventRequestFailed    EventType = "request_failed"
	EventCacheHit         EventType = "cache_hit"
	EventBudgetWarning    EventType = "budget_warning"
	EventBudgetExceeded   EventType = "budget_exceeded"
	EventRateLimited      EventType = "rate_limited"
	EventHealthChange     EventType = "health_change"
	EventPipelineStarted  EventType = "pipeline_started"
	EventPipelinePhase    EventType = "pipeline_phase"
	EventPipelineFinished EventType = "pipeline_finished"
)

// Event is a single pipeline event published on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Request fields (populated for request and cache events).
	UserID    string  `json:"user_id,omitempty"`
	AgentType string  `json:"agent_type,omitempty"`
	Model     string  `json:"model,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
	ErrorMsg  string  `json:"error_msg,omitempty"`
	Reason    string  `json:"reason,omitempty"`

	// Budget fields (populated for budget events).
	SpendUSD   float64 `json:"spend_usd,omitempty"`
	BudgetUSD  float64 `json:"budget_usd,omitempty"`
	PercentUse float64 `json:"percent_use,omitempty"`

	// Health fields (populated for health_change events).
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`

	// Pipeline fields (populated for pipeline events).
	PipelineID string `json:"pipeline_id,omitempty"`
	Phase      string `json:"phase,omitempty"`
	ProjectID  string `json:"project_id,omitempty"`
}

// JSON renders the event for SSE payloads.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

const defaultBufSize = 64

// Subscriber delivers events on C. Slow subscribers lose events rather
// than stall publishers.
type Subscriber struct {
	C    chan Event
	done chan struct{}
}

// Bus fans pipeline events out to subscribers in-process.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber whose channel buffers up to bufSize
// events; non-positive sizes get the default of 64.
func (b *Bus) Subscribe(bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	s := &Subscriber{
		C:    make(chan Event, bufSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe detaches the subscriber. Its channel is left open so a
// concurrent Publish never panics; the done channel signals readers.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	close(s.done)
}

// Publish stamps a missing timestamp and fans the event out without
// blocking. Events to full subscriber buffers are dropped.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.C <- e:
		default:
		}
	}
}

// SubscriberCount reports how many subscribers are attached.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
