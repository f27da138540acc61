package api

import (
	"net/http"
	"time"

	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/rs/zerolog"
)

// Reloader re-reads policies from their source.
type Reloader interface {
	Reload() error
}

// SystemHandler handles health, reset and reload.
type SystemHandler struct {
	service   *enforce.Service
	reloader  Reloader
	startTime time.Time
	logger    zerolog.Logger
}

// NewSystemHandler creates a new system handler. reloader may be nil.
func NewSystemHandler(service *enforce.Service, reloader Reloader, logger zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		service:   service,
		reloader:  reloader,
		startTime: time.Now(),
		logger:    logger.With().Str("handler", "system").Logger(),
	}
}

// GetHealth reports liveness.
func (h *SystemHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Reset runs the daily reset immediately.
func (h *SystemHandler) Reset(w http.ResponseWriter, r *http.Request) {
	users := h.service.ResetDaily()
	h.logger.Info().Int("users", users).Msg("Manual daily reset")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users_reset": users,
	})
}

// ReloadPolicy re-reads policies from disk.
func (h *SystemHandler) ReloadPolicy(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeError(w, http.StatusNotImplemented, "Policy source does not support reload")
		return
	}
	if err := h.reloader.Reload(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to reload policy")
		writeError(w, http.StatusInternalServerError, "Failed to reload policy: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Policy reloaded successfully",
	})
}
