// Package orchestrator routes agent requests to registered agents under a
// global concurrency ceiling and per-request timeout, persists the resulting
// conversation exchange, and aggregates agent health.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/events"
	"github.com/storyforge-ai/storyforge/internal/health"
	"github.com/storyforge-ai/storyforge/internal/metrics"
	"github.com/storyforge-ai/storyforge/internal/stats"
	"github.com/storyforge-ai/storyforge/internal/store"
)

// HealthState is the aggregate health of the orchestrator's agents.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// ErrUnknownAgent is returned when no agent is registered for the requested
// (or inferred) type.
var ErrUnknownAgent = errors.New("unknown agent type")

// ErrProjectNotFound is returned when agent-type inference needs a project
// that does not exist.
var ErrProjectNotFound = errors.New("project not found")

// CapacityError is returned when the in-flight ceiling is reached; callers
// may retry immediately once load drops.
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("orchestrator at capacity (%d in-flight requests)", e.Limit)
}

// TimeoutError is returned when a request exceeds the per-request deadline.
// Cancellation of the underlying model call is best-effort: it may still
// complete, bill, and cache.
type TimeoutError struct {
	AgentType string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s did not respond within %s", e.AgentType, e.Timeout)
}

// ConversationStore is the slice of persistence the orchestrator needs.
// store.Store satisfies it.
type ConversationStore interface {
	AppendMessage(ctx context.Context, m store.Message) error
	GetProject(ctx context.Context, id string) (*store.Project, error)
}

// Config holds orchestrator limits.
type Config struct {
	MaxConcurrent  int           // global in-flight ceiling
	RequestTimeout time.Duration // per-request deadline
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  10,
		RequestTimeout: 30 * time.Second,
	}
}

// AgentMetrics is a per-agent counter snapshot.
type AgentMetrics struct {
	AgentType        string  `json:"agent_type"`
	Requests         int64   `json:"requests"`
	Errors           int64   `json:"errors"`
	ErrorRate        float64 `json:"error_rate"`
	AvgProcessTimeMs float64 `json:"avg_process_time_ms"`
}

// Metrics is the orchestrator-level counter snapshot.
type Metrics struct {
	Agents           []AgentMetrics `json:"agents"`
	InFlight         int            `json:"in_flight"`
	CapacityRejects  int64          `json:"capacity_rejects"`
	TimeoutRejects   int64          `json:"timeout_rejects"`
	RegisteredAgents int            `json:"registered_agents"`
}

// Orchestrator owns the agent registry and admission control above it.
type Orchestrator struct {
	cfg      Config
	storage  ConversationStore
	tracker  *health.Tracker
	logger   *slog.Logger
	registry *metrics.Registry
	bus      *events.Bus
	stats    *stats.Collector
	nowFunc  func() time.Time

	// semaphore enforces the global concurrency ceiling.
	semaphore chan struct{}

	mu              sync.RWMutex
	agents          map[string]agent.Agent
	capacityRejects int64
	timeoutRejects  int64
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithMetrics records admission counters on m.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *Orchestrator) { o.registry = m }
}

// WithEventBus publishes request lifecycle events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithStats records per-request snapshots on c for rolling-window
// aggregation.
func WithStats(c *stats.Collector) Option {
	return func(o *Orchestrator) { o.stats = c }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.nowFunc = fn }
}

// New creates an orchestrator. storage may be nil (no conversation
// persistence, no phase inference).
func New(cfg Config, storage ConversationStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:       cfg,
		storage:   storage,
		tracker:   health.NewTracker(health.DefaultConfig()),
		logger:    logger,
		nowFunc:   time.Now,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
		agents:    make(map[string]agent.Agent),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterAgent adds an agent to the registry. Registering an already-present
// type replaces it; the latest registration wins.
func (o *Orchestrator) RegisterAgent(a agent.Agent) {
	o.mu.Lock()
	_, replaced := o.agents[a.Type()]
	o.agents[a.Type()] = a
	o.mu.Unlock()
	o.logger.Info("agent registered",
		slog.String("agent", a.Type()),
		slog.Bool("replaced", replaced),
	)
}

// Agent returns the registered agent for a type.
func (o *Orchestrator) Agent(agentType string) (agent.Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[agentType]
	return a, ok
}

// ProcessRequest resolves the target agent, enforces the concurrency ceiling
// and request timeout, runs the agent, and persists the exchange.
func (o *Orchestrator) ProcessRequest(ctx context.Context, req agent.Request) (*agent.Response, error) {
	// Admission: the ceiling is the sole orchestrator-level backpressure.
	// No queueing; rejected requests fail immediately.
	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	default:
		o.mu.Lock()
		o.capacityRejects++
		o.mu.Unlock()
		if o.registry != nil {
			o.registry.CapacityRejects.Inc()
		}
		return nil, &CapacityError{Limit: o.cfg.MaxConcurrent}
	}
	if o.registry != nil {
		o.registry.InFlight.Inc()
		defer o.registry.InFlight.Dec()
	}

	a, err := o.resolveAgent(ctx, req)
	if err != nil {
		return nil, err
	}

	start := o.nowFunc()
	o.publish(events.Event{
		Type:      events.EventPipelineStarted,
		UserID:    req.UserID,
		AgentType: a.Type(),
		ProjectID: req.ProjectID,
	})

	resp, err := o.runWithTimeout(ctx, a, req)
	elapsedMs := float64(o.nowFunc().Sub(start).Milliseconds())

	if err != nil {
		o.tracker.RecordError(a.Type(), err.Error())
		o.observe(a.Type(), "error", elapsedMs)
		o.record(a.Type(), nil, elapsedMs)
		return nil, err
	}

	o.tracker.RecordSuccess(a.Type(), elapsedMs)
	o.observe(a.Type(), "ok", elapsedMs)
	o.record(a.Type(), resp, elapsedMs)

	if o.storage != nil {
		o.persistExchange(ctx, req, a.Type(), resp)
	}
	return resp, nil
}

// runWithTimeout races the agent call against the per-request deadline. On
// timeout the caller gets an error immediately; the agent goroutine is left
// to finish on its own (zombie work is accepted over true cancellation).
func (o *Orchestrator) runWithTimeout(ctx context.Context, a agent.Agent, req agent.Request) (*agent.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	type result struct {
		resp *agent.Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := a.ProcessRequest(ctx, req)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			o.mu.Lock()
			o.timeoutRejects++
			o.mu.Unlock()
			if o.registry != nil {
				o.registry.Timeouts.Inc()
			}
			return nil, &TimeoutError{AgentType: a.Type(), Timeout: o.cfg.RequestTimeout}
		}
		return nil, ctx.Err()
	}
}

// resolveAgent picks the target: explicit type on the request, else inferred
// from the project's current phase.
func (o *Orchestrator) resolveAgent(ctx context.Context, req agent.Request) (agent.Agent, error) {
	agentType := req.AgentType
	if agentType == "" {
		if o.storage == nil {
			return nil, fmt.Errorf("no agent type given and no project store to infer from")
		}
		project, err := o.storage.GetProject(ctx, req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("infer agent from project %s: %w", req.ProjectID, err)
		}
		if project == nil {
			// The store reports a missing row as (nil, nil).
			return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, req.ProjectID)
		}
		agentType = project.CurrentPhase
	}

	a, ok := o.Agent(agentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, agentType)
	}
	return a, nil
}

// persistExchange writes one USER and one AGENT message for the request.
// Persistence failures are logged, not surfaced; the response already exists.
func (o *Orchestrator) persistExchange(ctx context.Context, req agent.Request, agentType string, resp *agent.Response) {
	now := o.nowFunc().UTC()
	userMsg := store.Message{
		ConversationID: req.ConversationID,
		Role:           store.RoleUser,
		AgentType:      agentType,
		Content:        req.Content,
		CreatedAt:      now,
	}
	agentMsg := store.Message{
		ConversationID: req.ConversationID,
		Role:           store.RoleAgent,
		AgentType:      agentType,
		Content:        resp.Content,
		CreatedAt:      now,
	}
	if err := o.storage.AppendMessage(ctx, userMsg); err != nil {
		o.logger.Error("persist user message failed", slog.String("error", err.Error()))
		return
	}
	if err := o.storage.AppendMessage(ctx, agentMsg); err != nil {
		o.logger.Error("persist agent message failed", slog.String("error", err.Error()))
	}
}

// HealthCheck aggregates registered agents: all healthy means healthy, some
// healthy means degraded, none means unhealthy.
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthState {
	o.mu.RLock()
	registered := make([]agent.Agent, 0, len(o.agents))
	for _, a := range o.agents {
		registered = append(registered, a)
	}
	o.mu.RUnlock()

	if len(registered) == 0 {
		return HealthUnhealthy
	}

	healthy := 0
	for _, a := range registered {
		if a.HealthCheck(ctx) == nil && o.tracker.IsAvailable(a.Type()) {
			healthy++
		}
	}
	switch {
	case healthy == len(registered):
		return HealthHealthy
	case healthy > 0:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}

// Tracker exposes the per-agent health tracker (for the periodic checker and
// HTTP handlers).
func (o *Orchestrator) Tracker() *health.Tracker {
	return o.tracker
}

// GetMetrics snapshots per-agent and orchestrator-level counters.
func (o *Orchestrator) GetMetrics() Metrics {
	o.mu.RLock()
	capacity := o.capacityRejects
	timeouts := o.timeoutRejects
	registered := len(o.agents)
	types := make([]string, 0, registered)
	for t := range o.agents {
		types = append(types, t)
	}
	o.mu.RUnlock()

	m := Metrics{
		InFlight:         len(o.semaphore),
		CapacityRejects:  capacity,
		TimeoutRejects:   timeouts,
		RegisteredAgents: registered,
	}
	for _, t := range types {
		s := o.tracker.GetStats(t)
		am := AgentMetrics{
			AgentType:        t,
			Requests:         s.TotalRequests,
			Errors:           s.TotalErrors,
			AvgProcessTimeMs: s.AvgLatencyMs,
		}
		if s.TotalRequests > 0 {
			am.ErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests)
		}
		m.Agents = append(m.Agents, am)
	}
	return m
}

func (o *Orchestrator) observe(agentType, status string, elapsedMs float64) {
	if o.registry == nil {
		return
	}
	o.registry.RequestsTotal.WithLabelValues(agentType, "", status).Inc()
	o.registry.RequestLatency.WithLabelValues(agentType, "").Observe(elapsedMs)
}

// record feeds the rolling-window stats collector. resp is nil on failure.
func (o *Orchestrator) record(agentType string, resp *agent.Response, elapsedMs float64) {
	if o.stats == nil {
		return
	}
	snap := stats.Snapshot{
		Timestamp: o.nowFunc().UTC(),
		AgentType: agentType,
		LatencyMs: elapsedMs,
	}
	if resp != nil {
		snap.Success = true
		snap.Model = resp.Metadata.Model
		snap.CostUSD = resp.Metadata.TokenUsage.CostUSD
		snap.PromptTokens = resp.Metadata.TokenUsage.PromptTokens
		snap.CompletionTokens = resp.Metadata.TokenUsage.CompletionTokens
	}
	o.stats.Record(snap)
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}
