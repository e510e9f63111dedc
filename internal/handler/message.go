package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"groupcast/internal/pipeline"
	"groupcast/internal/store"
)

type createMessageRequest struct {
	Message     string `json:"message"`
	SenderName  string `json:"sender_name"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// GetMessages handles GET /groups/{id}/messages. The history is ordered by
// message id ascending; an unknown group yields an empty list.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]

	msgs, err := h.Store.Messages(r.Context(), groupID)
	if err != nil {
		h.Log.Error().Err(err).Str("group_id", groupID).Msg("listing messages failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// CreateMessage handles POST /groups/{id}/messages, the synchronous ingress
// path. The committed message, id included, is returned in the response.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]

	// Cap request bodies at 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.Pipeline.Submit(r.Context(), groupID, req.SenderName, req.Message, req.IsAnonymous)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, store.ErrUnknownGroup):
		h.Log.Warn().Str("group_id", groupID).Msg("message for unknown group rejected")
		writeError(w, http.StatusInternalServerError, "Unknown group")
		return
	default:
		h.Log.Error().Err(err).Str("group_id", groupID).Msg("creating message failed")
		writeError(w, http.StatusInternalServerError, "Failed to create message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
