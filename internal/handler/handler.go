package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"groupcast/internal/config"
	"groupcast/internal/gateway"
	"groupcast/internal/pipeline"
	"groupcast/internal/store"
)

// Handler holds application dependencies
type Handler struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Gateway  *gateway.Gateway
	Config   config.Config
	Log      zerolog.Logger
}

// New creates a new Handler with the given dependencies
func New(st store.Store, p *pipeline.Pipeline, gw *gateway.Gateway, cfg config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    st,
		Pipeline: p,
		Gateway:  gw,
		Config:   cfg,
		Log:      log.With().Str("component", "handler").Logger(),
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API
	r.HandleFunc("/groups", h.GetGroups).Methods("GET")
	r.HandleFunc("/groups", h.CreateGroup).Methods("POST")
	r.HandleFunc("/groups/{id}/messages", h.GetMessages).Methods("GET")
	r.HandleFunc("/groups/{id}/messages", h.CreateMessage).Methods("POST")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
