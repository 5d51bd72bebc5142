package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/workflow"
)

// PipelineHandler runs a multi-phase content pipeline synchronously and
// returns the per-phase results. Phases default to the standard
// ideation/refiner/factcheck sequence when omitted.
func PipelineHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input workflow.PipelineInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			jsonError(w, "bad json", http.StatusBadRequest)
			return
		}
		if input.UserID == "" || input.ProjectID == "" || input.ConversationID == "" {
			jsonError(w, "user_id, project_id, and conversation_id are required", http.StatusBadRequest)
			return
		}
		if input.Content == "" {
			jsonError(w, "content is required", http.StatusBadRequest)
			return
		}
		for _, phase := range input.Phases {
			if !knownPhase(phase) {
				jsonError(w, "unknown phase: "+phase, http.StatusBadRequest)
				return
			}
		}

		out, err := d.Pipelines.Run(r.Context(), input)
		if err != nil {
			// Partial results still come back with the error envelope.
			writeJSON(w, http.StatusBadGateway, out)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func knownPhase(phase string) bool {
	switch phase {
	case agent.PhaseIdeation, agent.PhaseRefiner, agent.PhaseMedia, agent.PhaseFactCheck:
		return true
	}
	return false
}
