package handlers

import (
	"log/slog"
	"net/http"

	"github.com/formbricks/wordsim/internal/api/response"
	"github.com/formbricks/wordsim/internal/engine"
)

// StateReader reports the engine state.
type StateReader interface {
	State() engine.State
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	engine StateReader
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine StateReader) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health check response", "error", err)
	}
}

// Ready handles GET /ready: 200 once the embedding model is loaded, 503 while loading or after
// a load failure.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	state := h.engine.State()
	if !state.Serving() {
		response.RespondServiceUnavailable(w, "engine is "+state.String())

		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}
