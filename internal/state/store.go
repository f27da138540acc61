package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/rs/zerolog"
)

type entry struct {
	mu    sync.Mutex
	state UserState
}

// Store owns every UserState. Get-or-create is atomic under the map lock; mutations of one
// user are serialized by that user's own mutex, so unrelated users never contend.
type Store struct {
	clock  policy.Clock
	logger zerolog.Logger

	mu    sync.RWMutex
	users map[string]*entry
}

// NewStore creates an empty state store.
func NewStore(clock policy.Clock, logger zerolog.Logger) *Store {
	return &Store{
		clock:  clock,
		logger: logger.With().Str("component", "state-store").Logger(),
		users:  make(map[string]*entry),
	}
}

func (s *Store) entry(userID string) *entry {
	s.mu.RLock()
	e, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.users[userID]; ok {
		return e
	}
	e = &entry{}
	s.users[userID] = e
	return e
}

// With runs fn inside the user's critical section. The clock is read after the lock is taken,
// so successive calls for one user observe non-decreasing times, and the state is rolled over
// to the current day before fn sees it.
func (s *Store) With(userID string, fn func(st *UserState, now time.Time)) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.clock.UtcNow()
	e.state.RollOver(now)
	fn(&e.state, now)
}

// Snapshot returns the admin view of a user's state.
func (s *Store) Snapshot(userID string) Summary {
	var sum Summary
	s.With(userID, func(st *UserState, now time.Time) {
		sum = st.summarize(userID, now)
	})
	return sum
}

// SetCooldown blocks playback starts until the given instant.
func (s *Store) SetCooldown(userID string, until time.Time) {
	s.With(userID, func(st *UserState, _ time.Time) {
		u := until.UTC()
		st.CooldownUntil = &u
	})
}

// ClearCooldown removes any cooldown.
func (s *Store) ClearCooldown(userID string) {
	s.With(userID, func(st *UserState, _ time.Time) {
		st.CooldownUntil = nil
	})
}

// SetUnlock records an administrative unlock.
func (s *Store) SetUnlock(userID string, until time.Time, reason string) {
	s.With(userID, func(st *UserState, _ time.Time) {
		u := until.UTC()
		st.UnlockUntil = &u
		st.UnlockReason = reason
	})
}

// Users returns the known user ids in sorted order.
func (s *Store) Users() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// ResetDaily starts a new day for every user: consumption and rate-limit history are cleared,
// as is any cooldown, and an unlock is dropped once it has elapsed. Users are locked one at a
// time; a failure on one record is logged and does not stop the sweep. It returns the number of
// users reset.
func (s *Store) ResetDaily(now time.Time) int {
	s.mu.RLock()
	entries := make(map[string]*entry, len(s.users))
	for id, e := range s.users {
		entries[id] = e
	}
	s.mu.RUnlock()

	reset := 0
	for userID, e := range entries {
		if err := resetEntry(e, now); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to reset user state")
			continue
		}
		reset++
	}

	s.logger.Info().Int("users", reset).Str("day_key", DayKey(now)).Msg("Daily state reset complete")
	return reset
}

func resetEntry(e *entry, now time.Time) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during reset: %v", r)
		}
	}()

	st := &e.state
	st.DayKey = DayKey(now)
	st.MinutesConsumed = 0
	st.SeekEvents = nil
	st.SwitchEvents = nil
	st.CooldownUntil = nil
	if st.UnlockUntil != nil && !st.UnlockUntil.After(now) {
		st.UnlockUntil = nil
		st.UnlockReason = ""
	}
	return nil
}
