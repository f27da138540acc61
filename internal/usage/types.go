package usage

import (
	"time"
)

// Session represents an active playback session
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ItemID       string    `json:"item_id"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	Paused       bool      `json:"paused"`
}

// Stats summarizes a user's day against their budget
type Stats struct {
	Budget         int  `json:"budget_minutes"`
	Consumed       int  `json:"consumed_minutes"`
	RemainingToday int  `json:"remaining_minutes"`
	LimitExceeded  bool `json:"limit_exceeded"`
}

// NewStats builds Stats from a budget and consumed minutes.
func NewStats(budget, consumed int) Stats {
	stats := Stats{
		Budget:         budget,
		Consumed:       consumed,
		RemainingToday: budget - consumed,
		LimitExceeded:  consumed >= budget,
	}
	if stats.RemainingToday < 0 {
		stats.RemainingToday = 0
	}
	return stats
}
