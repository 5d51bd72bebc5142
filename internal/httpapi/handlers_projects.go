package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// defaultMessageLimit bounds unqualified message listings.
const defaultMessageLimit = 50

// ProjectHandler returns a project by ID, including its current phase.
func ProjectHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "projectID")
		project, err := d.Store.GetProject(r.Context(), id)
		if err != nil {
			jsonError(w, "project lookup failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if project == nil {
			jsonError(w, "project not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, project)
	}
}

// MessagesHandler returns the most recent messages in a conversation,
// oldest first. Optional query parameter: limit.
func MessagesHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "conversationID")

		limit := defaultMessageLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		msgs, err := d.Store.ListMessages(r.Context(), id, limit)
		if err != nil {
			jsonError(w, "message listing failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"conversation_id": id,
			"messages":        msgs,
		})
	}
}
