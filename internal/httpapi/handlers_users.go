package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storyforge-ai/storyforge/internal/store"
)

// BudgetHandler returns the user's current budget status, recomputed from
// the usage ledger on every call.
func BudgetHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		status, err := d.Gateway.BudgetStatus(r.Context(), userID)
		if err != nil {
			jsonError(w, "budget lookup failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// UsageHandler returns aggregated usage for a user. Optional query
// parameters: agent_type, model, since (RFC 3339), limit.
func UsageHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		f := store.UsageFilter{
			AgentType: r.URL.Query().Get("agent_type"),
			Model:     r.URL.Query().Get("model"),
		}
		if raw := r.URL.Query().Get("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				jsonError(w, "since must be RFC 3339", http.StatusBadRequest)
				return
			}
			f.Since = since
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			f.Limit = limit
		}

		stats, err := d.Gateway.UserUsageStats(r.Context(), userID, f)
		if err != nil {
			jsonError(w, "usage lookup failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// RateLimitHandler reports how many requests the user has left in the
// current window.
func RateLimitHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":   userID,
			"remaining": d.Gateway.RemainingRateLimit(userID),
		})
	}
}
