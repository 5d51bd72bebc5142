package health

import (
	"sync"
	"time"

	"github.com/storyforge-ai/storyforge/internal/events"
)

// State represents the health state of an agent.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Stats captures runtime health metrics for a single agent.
type Stats struct {
	AgentType     string    `json:"agent_type"`
	State         State     `json:"state"`
	TotalRequests int64     `json:"total_requests"`
	TotalErrors   int64     `json:"total_errors"`
	ConsecErrors  int       `json:"consec_errors"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorTime time.Time `json:"last_error_time,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
}

// TrackerConfig sets the error-streak thresholds for state demotion and how
// long a down agent sits out.
type TrackerConfig struct {
	ConsecErrorsForDegraded int
	ConsecErrorsForDown     int
	CooldownDuration        time.Duration
}

// DefaultConfig degrades after 2 consecutive errors, downs after 5, and
// benches a down agent for 30 seconds.
func DefaultConfig() TrackerConfig {
	return TrackerConfig{
		ConsecErrorsForDegraded: 2,
		ConsecErrorsForDown:     5,
		CooldownDuration:        30 * time.Second,
	}
}

// Tracker tracks runtime health of all agents.
type Tracker struct {
	cfg      TrackerConfig
	EventBus *events.Bus
	onUpdate func(agentType string, state State)
	nowFunc  func() time.Time

	mu    sync.RWMutex
	stats map[string]*Stats
}

// TrackerOption configures optional Tracker behaviour.
type TrackerOption func(*Tracker)

// WithEventBus publishes health state transitions as EventHealthChange.
func WithEventBus(bus *events.Bus) TrackerOption {
	return func(t *Tracker) { t.EventBus = bus }
}

// WithOnUpdate registers a callback invoked on every RecordSuccess and
// RecordError, not just transitions. Use it to keep external gauges current.
func WithOnUpdate(fn func(agentType string, state State)) TrackerOption {
	return func(t *Tracker) { t.onUpdate = fn }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) TrackerOption {
	return func(t *Tracker) { t.nowFunc = fn }
}

// NewTracker creates a health tracker with the given config.
func NewTracker(cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		cfg:     cfg,
		stats:   make(map[string]*Stats),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// apply mutates one agent's stats under the write lock, then fires the
// update callback and, on a state transition, a health-change event. The
// reason string accompanies the event.
func (t *Tracker) apply(agentType, reason string, mutate func(s *Stats)) {
	t.mu.Lock()
	s := t.getOrCreate(agentType)
	oldState := s.State
	mutate(s)
	newState := s.State
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(agentType, newState)
	}
	if oldState != newState && t.EventBus != nil {
		t.EventBus.Publish(events.Event{
			Type:      events.EventHealthChange,
			AgentType: agentType,
			OldState:  string(oldState),
			NewState:  string(newState),
			Reason:    reason,
		})
	}
}

// RecordSuccess marks an agent healthy, clearing any error streak and
// cooldown, and folds the latency into a decaying average.
func (t *Tracker) RecordSuccess(agentType string, latencyMs float64) {
	t.apply(agentType, "success recorded", func(s *Stats) {
		s.TotalRequests++
		s.ConsecErrors = 0
		s.LastSuccessAt = t.nowFunc()
		s.State = StateHealthy
		s.CooldownUntil = time.Time{}

		if s.TotalRequests == 1 {
			s.AvgLatencyMs = latencyMs
		} else {
			s.AvgLatencyMs = s.AvgLatencyMs*0.9 + latencyMs*0.1
		}
	})
}

// RecordError extends the agent's error streak, demoting it to degraded or
// down when the streak crosses the configured thresholds.
func (t *Tracker) RecordError(agentType string, errMsg string) {
	t.apply(agentType, errMsg, func(s *Stats) {
		s.TotalRequests++
		s.TotalErrors++
		s.ConsecErrors++
		s.LastError = errMsg
		s.LastErrorTime = t.nowFunc()

		switch {
		case s.ConsecErrors >= t.cfg.ConsecErrorsForDown:
			s.State = StateDown
			s.CooldownUntil = t.nowFunc().Add(t.cfg.CooldownDuration)
		case s.ConsecErrors >= t.cfg.ConsecErrorsForDegraded:
			s.State = StateDegraded
		}
	})
}

// IsAvailable reports whether an agent should receive requests. Unknown
// agents are assumed available; down agents recover when their cooldown
// lapses.
func (t *Tracker) IsAvailable(agentType string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[agentType]
	if !ok {
		return true
	}
	return !(s.State == StateDown && t.nowFunc().Before(s.CooldownUntil))
}

// GetStats returns a copy of the health stats for an agent.
func (t *Tracker) GetStats(agentType string) *Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[agentType]
	if !ok {
		return &Stats{AgentType: agentType, State: StateHealthy}
	}
	cp := *s
	return &cp
}

// AllStats returns a copy of health stats for all known agents.
func (t *Tracker) AllStats() []Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]Stats, 0, len(t.stats))
	for _, s := range t.stats {
		all = append(all, *s)
	}
	return all
}

// GetErrorRate returns the lifetime error rate for an agent.
func (t *Tracker) GetErrorRate(agentType string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.stats[agentType]; ok && s.TotalRequests > 0 {
		return float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	return 0
}

func (t *Tracker) getOrCreate(agentType string) *Stats {
	s, ok := t.stats[agentType]
	if !ok {
		s = &Stats{AgentType: agentType, State: StateHealthy}
		t.stats[agentType] = s
	}
	return s
}
