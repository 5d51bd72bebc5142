// Package httpapi exposes the orchestrator, gateway, and pipeline dispatcher
// over HTTP. All handlers are constructed from a Dependencies struct so the
// wiring stays explicit and testable.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/events"
	"github.com/storyforge-ai/storyforge/internal/health"
	"github.com/storyforge-ai/storyforge/internal/llm"
	"github.com/storyforge-ai/storyforge/internal/metrics"
	"github.com/storyforge-ai/storyforge/internal/orchestrator"
	"github.com/storyforge-ai/storyforge/internal/stats"
	"github.com/storyforge-ai/storyforge/internal/store"
	"github.com/storyforge-ai/storyforge/internal/workflow"
)

// AgentProcessor handles one agent request end to end. Satisfied by
// *orchestrator.Orchestrator.
type AgentProcessor interface {
	ProcessRequest(ctx context.Context, req agent.Request) (*agent.Response, error)
	HealthCheck(ctx context.Context) orchestrator.HealthState
	GetMetrics() orchestrator.Metrics
}

// UsageReader answers budget and usage queries for a user. Satisfied by
// *llm.Gateway.
type UsageReader interface {
	BudgetStatus(ctx context.Context, userID string) (llm.BudgetStatus, error)
	UserUsageStats(ctx context.Context, userID string, f store.UsageFilter) (llm.UsageStats, error)
	RemainingRateLimit(userID string) int
}

// PipelineRunner executes a multi-phase content pipeline. Satisfied by
// *workflow.Dispatcher.
type PipelineRunner interface {
	Run(ctx context.Context, input workflow.PipelineInput) (workflow.PipelineOutput, error)
}

// Dependencies carries everything the HTTP layer needs. Nil fields disable
// the corresponding routes rather than panicking at mount time.
type Dependencies struct {
	Orchestrator AgentProcessor
	Gateway      UsageReader
	Store        store.Store
	Pipelines    PipelineRunner
	Tracker      *health.Tracker
	EventBus     *events.Bus
	Metrics      *metrics.Registry
	Stats        *stats.Collector
}

// MountRoutes attaches all API routes to the given router.
func MountRoutes(r chi.Router, d Dependencies) {
	// Liveness probe. Deliberately cheap: no downstream checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if d.Orchestrator != nil {
		r.Get("/readyz", ReadinessHandler(d))
	}

	// Main API (v1)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequestID)

		if d.Orchestrator != nil {
			r.Post("/agents/process", ProcessHandler(d))
			r.Get("/agents/health", AgentHealthHandler(d))
		}
		if d.Gateway != nil {
			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/budget", BudgetHandler(d))
				r.Get("/usage", UsageHandler(d))
				r.Get("/ratelimit", RateLimitHandler(d))
			})
		}
		if d.Pipelines != nil {
			r.Post("/pipelines", PipelineHandler(d))
		}
		if d.Store != nil {
			r.Get("/projects/{projectID}", ProjectHandler(d))
			r.Get("/conversations/{conversationID}/messages", MessagesHandler(d))
		}
	})

	// Admin API
	r.Route("/admin/v1", func(r chi.Router) {
		if d.EventBus != nil {
			r.Get("/events", SSEHandler(d.EventBus))
		}
		if d.Orchestrator != nil {
			r.Get("/stats", StatsHandler(d))
		}
		if d.Stats != nil {
			r.Get("/stats/windows", WindowedStatsHandler(d))
		}
	})

	// Prometheus metrics
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
}
