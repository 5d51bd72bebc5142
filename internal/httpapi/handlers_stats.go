package httpapi

import "net/http"

// WindowedStatsHandler returns rolling-window aggregates for the admin
// dashboard: global, per agent type, and per model.
func WindowedStatsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"global":   d.Stats.Global(),
			"by_agent": d.Stats.ByAgent(),
			"by_model": d.Stats.ByModel(),
		})
	}
}
