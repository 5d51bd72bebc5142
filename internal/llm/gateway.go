// Package llm implements the admission-controlled, cached, cost-accounted
// entry point for all model calls. Every completion passes through pre-flight
// budget and rate checks, a content-addressed response cache, the retry
// policy, and append-only usage recording.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyforge-ai/storyforge/internal/cache"
	"github.com/storyforge-ai/storyforge/internal/events"
	"github.com/storyforge-ai/storyforge/internal/metrics"
	"github.com/storyforge-ai/storyforge/internal/provider"
	"github.com/storyforge-ai/storyforge/internal/ratelimit"
	"github.com/storyforge-ai/storyforge/internal/retry"
	"github.com/storyforge-ai/storyforge/internal/store"
)

// UsageStore is the slice of the persistence collaborator the gateway needs.
// store.Store satisfies it.
type UsageStore interface {
	AppendUsage(ctx context.Context, rec store.UsageRecord) error
	SumUserCost(ctx context.Context, userID string, since time.Time) (float64, error)
	ListUsage(ctx context.Context, userID string, f store.UsageFilter) ([]store.UsageRecord, error)
}

// Config holds the gateway's governing defaults.
type Config struct {
	MonthlyBudgetUSD float64       // per-user monthly spend ceiling
	WarnThreshold    float64       // fraction of budget that triggers a warning (default 0.8)
	RateLimit        int           // requests per window per user
	RateWindow       time.Duration // sliding window span
	DefaultModel     string
	DefaultMaxTokens int
	DefaultTemp      float64
}

// DefaultConfig returns the standard governing limits.
func DefaultConfig() Config {
	return Config{
		MonthlyBudgetUSD: 20.0,
		WarnThreshold:    0.8,
		RateLimit:        10,
		RateWindow:       time.Minute,
		DefaultModel:     defaultModel,
		DefaultMaxTokens: 1000,
		DefaultTemp:      0.7,
	}
}

// Gateway governs all model calls.
type Gateway struct {
	cfg     Config
	caller  provider.ModelCaller
	ledger  UsageStore
	cache   cache.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	// Optional collaborators; nil-safe.
	bus     *events.Bus
	metrics *metrics.Registry

	// budgetFor resolves a user's monthly budget; defaults to the config value.
	budgetFor func(userID string) float64

	retryOpts retry.Options

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
}

// GatewayOption configures optional gateway collaborators.
type GatewayOption func(*Gateway)

// WithEventBus publishes budget, rate-limit, and cache events on bus.
func WithEventBus(bus *events.Bus) GatewayOption {
	return func(g *Gateway) { g.bus = bus }
}

// WithMetrics records cache and admission counters on m.
func WithMetrics(m *metrics.Registry) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithBudgetResolver overrides per-user monthly budgets.
func WithBudgetResolver(fn func(userID string) float64) GatewayOption {
	return func(g *Gateway) { g.budgetFor = fn }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) GatewayOption {
	return func(g *Gateway) { g.nowFunc = fn }
}

// WithRetryOptions replaces the agent-call retry preset (tests shorten delays).
func WithRetryOptions(opts retry.Options) GatewayOption {
	return func(g *Gateway) { g.retryOpts = opts }
}

// NewGateway wires a gateway. A nil cacheStore disables caching (degrades to
// all-miss); the limiter is owned by the gateway and stopped via Close.
func NewGateway(cfg Config, caller provider.ModelCaller, ledger UsageStore, cacheStore cache.Store, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	if cfg.WarnThreshold <= 0 || cfg.WarnThreshold >= 1 {
		cfg.WarnThreshold = 0.8
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultModel
	}
	if cacheStore == nil {
		cacheStore = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		cfg:       cfg,
		caller:    caller,
		ledger:    ledger,
		cache:     cacheStore,
		logger:    logger,
		retryOpts: retry.AgentCallOptions(),
		nowFunc:   time.Now,
	}
	g.budgetFor = func(string) float64 { return cfg.MonthlyBudgetUSD }
	for _, o := range opts {
		o(g)
	}

	var limiterOpts []ratelimit.Option
	if g.metrics != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithCounter(g.metrics.RateLimitRejects))
	}
	limiterOpts = append(limiterOpts, ratelimit.WithNowFunc(g.nowFunc))
	g.limiter = ratelimit.New(cfg.RateLimit, cfg.RateWindow, limiterOpts...)
	return g
}

// Close stops the gateway's background goroutines.
func (g *Gateway) Close() {
	g.limiter.Stop()
}

// GenerateCompletion runs the full governed pipeline for one model call.
//
// Cache hits are free: they consume no rate-limit capacity, no budget, and
// record no usage. Identical prompts share one billed call across users.
func (g *Gateway) GenerateCompletion(ctx context.Context, req Request) (*Response, error) {
	key := cacheKey(req)

	// 1. Cache lookup. A hit short-circuits admission control entirely.
	if payload, ok := g.cache.Get(ctx, key); ok {
		var resp Response
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.RequestID = uuid.NewString()
			resp.Cached = true
			if g.metrics != nil {
				g.metrics.CacheHits.Inc()
			}
			g.publish(events.Event{
				Type:      events.EventCacheHit,
				UserID:    req.UserID,
				AgentType: req.AgentType,
				Model:     resp.Model,
				RequestID: resp.RequestID,
			})
			return &resp, nil
		}
		// Corrupt entry: fall through to a real call.
		g.logger.Warn("discarding undecodable cache entry", slog.String("cache_entry", key))
	}
	if g.metrics != nil {
		g.metrics.CacheMisses.Inc()
	}

	// 2. Pre-flight admission: rate limit, then budget.
	if !g.limiter.Allow(req.UserID) {
		g.publish(events.Event{Type: events.EventRateLimited, UserID: req.UserID, AgentType: req.AgentType})
		return nil, &RateLimitError{UserID: req.UserID, Limit: g.cfg.RateLimit, Window: g.cfg.RateWindow}
	}

	status, err := g.BudgetStatus(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("budget check: %w", err)
	}
	if status.IsOverBudget {
		if g.metrics != nil {
			g.metrics.BudgetRejects.Inc()
		}
		g.publish(events.Event{
			Type:      events.EventBudgetExceeded,
			UserID:    req.UserID,
			SpendUSD:  status.CurrentSpendUSD,
			BudgetUSD: status.MonthlyBudgetUSD,
		})
		return nil, &BudgetExceededError{
			UserID:    req.UserID,
			BudgetUSD: status.MonthlyBudgetUSD,
			SpentUSD:  status.CurrentSpendUSD,
		}
	}
	if status.IsApproachingLimit {
		g.logger.Warn("user approaching monthly budget",
			slog.String("user_id", req.UserID),
			slog.Float64("spend_usd", status.CurrentSpendUSD),
			slog.Float64("budget_usd", status.MonthlyBudgetUSD),
			slog.Float64("used_percent", status.BudgetUsedPercent),
		)
		g.publish(events.Event{
			Type:       events.EventBudgetWarning,
			UserID:     req.UserID,
			SpendUSD:   status.CurrentSpendUSD,
			BudgetUSD:  status.MonthlyBudgetUSD,
			PercentUse: status.BudgetUsedPercent,
		})
	}

	// 3. Resolve effective parameters: request overrides beat service defaults.
	model := req.Model
	if model == "" {
		model = g.cfg.DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.DefaultMaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.cfg.DefaultTemp
	}

	messages := buildMessages(req)

	// 4. The actual model call, via the agent-call retry preset.
	opts := g.retryOpts
	opts.OnRetry = func(attempt int, err error) {
		g.logger.Warn("retrying model call",
			slog.Int("attempt", attempt),
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
	}
	start := g.nowFunc()
	result, err := retry.DoValue(ctx, opts, func(ctx context.Context) (*provider.Result, error) {
		return g.caller.Call(ctx, model, messages, maxTokens, temperature)
	})
	if err != nil {
		g.publish(events.Event{
			Type:      events.EventRequestFailed,
			UserID:    req.UserID,
			AgentType: req.AgentType,
			Model:     model,
			ErrorMsg:  err.Error(),
		})
		return nil, err
	}
	latencyMs := float64(g.nowFunc().Sub(start).Milliseconds())

	// 5. Cost accounting and usage recording. The ledger write is idempotent
	// by request ID, so a crash after this point never double-bills; a
	// missing cache entry is acceptable.
	requestID := uuid.NewString()
	cost := tokenCost(model, result.Usage.TotalTokens)
	rec := store.UsageRecord{
		UserID:           req.UserID,
		AgentType:        req.AgentType,
		Model:            model,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
		CostUSD:          cost,
		RequestID:        requestID,
		Timestamp:        g.nowFunc().UTC(),
	}
	if err := g.ledger.AppendUsage(ctx, rec); err != nil {
		// Billing must not silently leak: surface the failure.
		return nil, fmt.Errorf("record usage: %w", err)
	}

	resp := &Response{
		Content: result.Content,
		Usage: Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
			CostUSD:          cost,
		},
		Model:     model,
		RequestID: requestID,
	}

	// 6. Best-effort cache write with an agent-type TTL.
	if payload, err := json.Marshal(resp); err == nil {
		g.cache.Set(ctx, key, payload, cacheTTLFor(req.AgentType))
	}

	if g.metrics != nil {
		g.metrics.CostUSD.WithLabelValues(req.AgentType, model).Add(cost)
		g.metrics.TokensTotal.WithLabelValues(req.AgentType, model).Add(float64(result.Usage.TotalTokens))
	}
	g.publish(events.Event{
		Type:      events.EventRequestCompleted,
		UserID:    req.UserID,
		AgentType: req.AgentType,
		Model:     model,
		RequestID: requestID,
		LatencyMs: latencyMs,
		CostUSD:   cost,
	})

	return resp, nil
}

// BudgetStatus recomputes a user's budget position from the ledger. The
// period is the calendar month of the current time, UTC.
func (g *Gateway) BudgetStatus(ctx context.Context, userID string) (BudgetStatus, error) {
	spend, err := g.ledger.SumUserCost(ctx, userID, monthStart(g.nowFunc()))
	if err != nil {
		return BudgetStatus{}, err
	}
	budget := g.budgetFor(userID)

	status := BudgetStatus{
		UserID:           userID,
		CurrentSpendUSD:  spend,
		MonthlyBudgetUSD: budget,
	}
	if budget > 0 {
		status.BudgetUsedPercent = spend / budget * 100
		status.IsOverBudget = spend >= budget
		status.IsApproachingLimit = !status.IsOverBudget && spend >= budget*g.cfg.WarnThreshold
	}
	return status, nil
}

// UserUsageStats aggregates the user's ledger records matching the filter.
func (g *Gateway) UserUsageStats(ctx context.Context, userID string, f store.UsageFilter) (UsageStats, error) {
	records, err := g.ledger.ListUsage(ctx, userID, f)
	if err != nil {
		return UsageStats{}, err
	}
	stats := UsageStats{
		UserID:      userID,
		ByAgentType: make(map[string]int),
		CostByModel: make(map[string]float64),
		Since:       f.Since,
	}
	for _, r := range records {
		stats.TotalRequests++
		stats.TotalTokens += r.TotalTokens
		stats.TotalCostUSD += r.CostUSD
		stats.ByAgentType[r.AgentType]++
		stats.CostByModel[r.Model] += r.CostUSD
	}
	return stats, nil
}

// RemainingRateLimit reports how many calls the user may still make in the
// current window.
func (g *Gateway) RemainingRateLimit(userID string) int {
	return g.limiter.Remaining(userID)
}

// FlushCache invalidates every cached response.
func (g *Gateway) FlushCache(ctx context.Context) {
	g.cache.Flush(ctx)
}

// HealthCheck verifies the gateway can serve calls.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	if g.caller == nil {
		return fmt.Errorf("no model caller configured")
	}
	if g.ledger == nil {
		return fmt.Errorf("no usage ledger configured")
	}
	return nil
}

func (g *Gateway) publish(e events.Event) {
	if g.bus != nil {
		g.bus.Publish(e)
	}
}

// cacheKey hashes the semantically relevant request fields. UserID is
// deliberately excluded: the cache is content-addressed and shared.
func cacheKey(req Request) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(struct {
		Prompt      string  `json:"prompt"`
		Context     string  `json:"context"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		AgentType   string  `json:"agent_type"`
	}{req.Prompt, req.Context, req.Model, req.Temperature, req.MaxTokens, req.AgentType})
	return hex.EncodeToString(h.Sum(nil))
}

// buildMessages converts a gateway request into chat messages: the built
// system context first, then the user prompt.
func buildMessages(req Request) []provider.Message {
	var messages []provider.Message
	if req.Context != "" {
		messages = append(messages, provider.Message{Role: "system", Content: req.Context})
	}
	messages = append(messages, provider.Message{Role: "user", Content: req.Prompt})
	return messages
}

// monthStart returns the beginning of t's calendar month, UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
