package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/parentguard/internal/metrics"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/rs/zerolog"
)

const (
	// DefaultInactivityTimeout is the duration after which a silent session is dropped
	DefaultInactivityTimeout = 5 * time.Minute

	// DefaultCleanupInterval is how often inactive sessions are swept
	DefaultCleanupInterval = time.Minute
)

// Tracker keeps the playback sessions currently active per user, so that administrative locks
// can stop them.
type Tracker struct {
	clock             policy.Clock
	sessions          map[string]*Session // key: sessionID
	inactivityTimeout time.Duration
	cleanupInterval   time.Duration
	logger            zerolog.Logger
	mu                sync.RWMutex
}

// Config holds tracker configuration
type Config struct {
	InactivityTimeout time.Duration
	CleanupInterval   time.Duration
}

// NewTracker creates a new session tracker
func NewTracker(clock policy.Clock, config Config, logger zerolog.Logger) *Tracker {
	if config.InactivityTimeout == 0 {
		config.InactivityTimeout = DefaultInactivityTimeout
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}

	return &Tracker{
		clock:             clock,
		sessions:          make(map[string]*Session),
		inactivityTimeout: config.InactivityTimeout,
		cleanupInterval:   config.CleanupInterval,
		logger:            logger.With().Str("component", "session-tracker").Logger(),
	}
}

// InactivityTimeout returns the configured inactivity timeout.
func (t *Tracker) InactivityTimeout() time.Duration {
	return t.inactivityTimeout
}

// Start registers a session, replacing any previous one with the same id.
func (t *Tracker) Start(sessionID, userID, itemID string) {
	if sessionID == "" {
		return
	}
	now := t.clock.UtcNow()

	t.mu.Lock()
	t.sessions[sessionID] = &Session{
		ID:           sessionID,
		UserID:       userID,
		ItemID:       itemID,
		StartedAt:    now,
		LastActivity: now,
	}
	count := len(t.sessions)
	t.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	t.logger.Debug().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Str("item_id", itemID).
		Msg("Tracking playback session")
}

// Touch records activity on a session, registering it if it is unknown.
func (t *Tracker) Touch(sessionID, userID, itemID string, paused bool) {
	if sessionID == "" {
		return
	}
	now := t.clock.UtcNow()

	t.mu.Lock()
	session, exists := t.sessions[sessionID]
	if !exists {
		session = &Session{ID: sessionID, UserID: userID, ItemID: itemID, StartedAt: now}
		t.sessions[sessionID] = session
	}
	session.LastActivity = now
	session.Paused = paused
	if itemID != "" {
		session.ItemID = itemID
	}
	count := len(t.sessions)
	t.mu.Unlock()

	if !exists {
		metrics.ActiveSessions.Set(float64(count))
	}
}

// Stop forgets a session. It returns the session and whether it was tracked.
func (t *Tracker) Stop(sessionID string) (Session, bool) {
	t.mu.Lock()
	session, exists := t.sessions[sessionID]
	if exists {
		delete(t.sessions, sessionID)
	}
	count := len(t.sessions)
	t.mu.Unlock()

	if !exists {
		return Session{}, false
	}

	metrics.ActiveSessions.Set(float64(count))
	t.logger.Debug().
		Str("session_id", sessionID).
		Str("user_id", session.UserID).
		Dur("duration", session.LastActivity.Sub(session.StartedAt)).
		Msg("Stopped tracking playback session")
	return *session, true
}

// ActiveForUser returns the user's sessions, oldest first.
func (t *Tracker) ActiveForUser(userID string) []Session {
	t.mu.RLock()
	out := make([]Session, 0)
	for _, session := range t.sessions {
		if session.UserID == userID {
			out = append(out, *session)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Active returns every tracked session, oldest first.
func (t *Tracker) Active() []Session {
	t.mu.RLock()
	out := make([]Session, 0, len(t.sessions))
	for _, session := range t.sessions {
		out = append(out, *session)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Run sweeps inactive sessions until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.CleanupInactive()
		}
	}
}

// CleanupInactive drops sessions silent for longer than the inactivity timeout and returns
// how many were dropped.
func (t *Tracker) CleanupInactive() int {
	now := t.clock.UtcNow()

	t.mu.Lock()
	removed := 0
	for sessionID, session := range t.sessions {
		// Check if session has been inactive too long
		if now.Sub(session.LastActivity) > t.inactivityTimeout {
			t.logger.Debug().
				Str("session_id", sessionID).
				Str("user_id", session.UserID).
				Dur("inactive", now.Sub(session.LastActivity)).
				Msg("Cleaning up inactive session")
			delete(t.sessions, sessionID)
			removed++
		}
	}
	count := len(t.sessions)
	t.mu.Unlock()

	if removed > 0 {
		metrics.ActiveSessions.Set(float64(count))
	}
	return removed
}
