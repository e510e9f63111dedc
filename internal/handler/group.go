package handler

import (
	"encoding/json"
	"net/http"
)

type createGroupRequest struct {
	Name string `json:"name"`
}

// GetGroups handles GET /groups. Groups are returned newest first.
func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Store.Groups(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("listing groups failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

// CreateGroup handles POST /groups. Groups are created administratively and
// are immutable afterwards.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	group, err := h.Store.CreateGroup(r.Context(), req.Name)
	if err != nil {
		h.Log.Error().Err(err).Msg("creating group failed")
		writeError(w, http.StatusInternalServerError, "Failed to create group")
		return
	}

	writeJSON(w, http.StatusCreated, group)
}
