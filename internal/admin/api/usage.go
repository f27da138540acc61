package api

import (
	"net/http"
	"time"

	"github.com/goodtune/parentguard/internal/state"
	"github.com/goodtune/parentguard/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// UsageHandler serves per-day watch history.
type UsageHandler struct {
	usageStore storage.UsageStore
	logger     zerolog.Logger
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(usageStore storage.UsageStore, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		usageStore: usageStore,
		logger:     logger.With().Str("handler", "usage").Logger(),
	}
}

// GetDailyUsage returns usage for one date.
func (h *UsageHandler) GetDailyUsage(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	if _, err := time.Parse(state.DayKeyLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	usages := []storage.DailyUsage{}
	if h.usageStore != nil {
		var err error
		usages, err = h.usageStore.ListDailyUsage(r.Context(), date)
		if err != nil {
			h.logger.Error().Err(err).Str("date", date).Msg("Failed to get daily usage")
			writeError(w, http.StatusInternalServerError, "Failed to retrieve usage data")
			return
		}
	}

	total := 0
	for _, u := range usages {
		total += u.Minutes
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":          date,
		"usages":        usages,
		"count":         len(usages),
		"total_minutes": total,
	})
}
