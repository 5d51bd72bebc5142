package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/llm"
	"github.com/storyforge-ai/storyforge/internal/orchestrator"
)

// ProcessHandler accepts an agent request, routes it through the
// orchestrator, and returns the agent's response.
//
// Error mapping: validation failures are 400, unknown agent types are 404,
// rate limiting is 429, budget exhaustion is 402, the concurrency ceiling is
// 503 and deadline expiry is 504. Everything else is a 502: the agents fall
// back internally, so an error reaching this layer means the request never
// produced a response at all.
func ProcessHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agent.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.UserID == "" || req.ProjectID == "" || req.ConversationID == "" {
			jsonError(w, "user_id, project_id, and conversation_id are required", http.StatusBadRequest)
			return
		}
		if req.Content == "" {
			jsonError(w, "content is required", http.StatusBadRequest)
			return
		}

		resp, err := d.Orchestrator.ProcessRequest(r.Context(), req)
		if err != nil {
			writeProcessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeProcessError(w http.ResponseWriter, err error) {
	var (
		validationErr *agent.ValidationError
		rateErr       *llm.RateLimitError
		budgetErr     *llm.BudgetExceededError
		capacityErr   *orchestrator.CapacityError
		timeoutErr    *orchestrator.TimeoutError
	)
	switch {
	case errors.As(err, &validationErr):
		jsonError(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, orchestrator.ErrUnknownAgent), errors.Is(err, orchestrator.ErrProjectNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", "60")
		jsonError(w, rateErr.Error(), http.StatusTooManyRequests)
	case errors.As(err, &budgetErr):
		jsonError(w, budgetErr.Error(), http.StatusPaymentRequired)
	case errors.As(err, &capacityErr):
		w.Header().Set("Retry-After", "1")
		jsonError(w, capacityErr.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &timeoutErr):
		jsonError(w, timeoutErr.Error(), http.StatusGatewayTimeout)
	default:
		jsonError(w, err.Error(), http.StatusBadGateway)
	}
}

// AgentHealthHandler reports the aggregate orchestrator health plus
// per-agent tracker stats.
func AgentHealthHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status": d.Orchestrator.HealthCheck(r.Context()),
		}
		if d.Tracker != nil {
			body["agents"] = d.Tracker.AllStats()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// ReadinessHandler returns 200 when at least some agents can serve traffic,
// 503 when none can.
func ReadinessHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Orchestrator.HealthCheck(r.Context())
		code := http.StatusOK
		if state == orchestrator.HealthUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": state})
	}
}

// StatsHandler exposes orchestrator counters for the admin surface.
func StatsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, d.Orchestrator.GetMetrics())
	}
}
