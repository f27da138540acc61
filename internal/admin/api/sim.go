package api

import (
	"net/http"

	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SimHandler exercises the engine without a media host.
type SimHandler struct {
	service *enforce.Service
	logger  zerolog.Logger
}

// NewSimHandler creates a new simulation handler.
func NewSimHandler(service *enforce.Service, logger zerolog.Logger) *SimHandler {
	return &SimHandler{
		service: service,
		logger:  logger.With().Str("handler", "sim").Logger(),
	}
}

// Start simulates a playback start.
func (h *SimHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	writeJSON(w, http.StatusOK, h.service.SimulateStart(r.Context(), userID))
}

// Seek simulates one seek.
func (h *SimHandler) Seek(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	writeJSON(w, http.StatusOK, h.service.SimulateSeek(r.Context(), userID))
}

// Switch simulates one title switch.
func (h *SimHandler) Switch(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	writeJSON(w, http.StatusOK, h.service.SimulateSwitch(r.Context(), userID))
}

// Progress charges minutes of watching.
func (h *SimHandler) Progress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	minutes, ok := positiveInt(vars["minutes"])
	if !ok {
		writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, h.service.SimulateProgress(r.Context(), vars["userID"], minutes))
}
