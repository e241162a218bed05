package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lakesage/lakesage/internal/auth"
	"github.com/lakesage/lakesage/internal/history"
)

type interactionView struct {
	ID        int64           `json:"id"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Answered  bool            `json:"answered"`
	Attempts  int             `json:"attempts"`
	Log       json.RawMessage `json:"log,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func handleListInteractions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if errResp := requireRole(r, auth.RoleAsk); errResp != nil {
		writeError(r.Context(), w, errResp.status, errResp.code, errResp.message, false, nil)
		return
	}
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "interaction history is not configured", true, nil)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be an integer between 1 and 500", false, nil)
			return
		}
		limit = parsed
	}

	interactions, err := deps.History.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_QUERY_FAILED", err.Error(), true, nil)
		return
	}

	out := make([]interactionView, 0, len(interactions))
	for _, interaction := range interactions {
		out = append(out, renderInteraction(interaction))
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": out})
}

func renderInteraction(interaction history.Interaction) interactionView {
	view := interactionView{
		ID:        interaction.ID,
		Question:  interaction.Question,
		Answer:    interaction.Answer,
		Answered:  interaction.Answered,
		Attempts:  interaction.Attempts,
		CreatedAt: interaction.CreatedAt,
	}
	if len(interaction.AttemptLog) > 0 {
		view.Log = json.RawMessage(interaction.AttemptLog)
	}
	return view
}
