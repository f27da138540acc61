// Package state holds the per-user mutable runtime state behind enforcement decisions.
package state

import "time"

// DayKeyLayout formats the UTC date used to detect day rollover.
const DayKeyLayout = "2006-01-02"

// DayKey returns the rollover key for an instant.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// UserState is the runtime record for one user. It is only mutated inside the owning Store's
// per-user critical section.
type UserState struct {
	DayKey          string
	MinutesConsumed int

	SeekEvents   []time.Time
	SwitchEvents []time.Time

	CooldownUntil *time.Time
	UnlockUntil   *time.Time
	UnlockReason  string

	// Last progress sample, cleared on stop.
	LastPositionTicks *int64
	LastProgressTime  *time.Time
	LastPaused        bool

	// Minute bucket last charged to the budget. Zero means no baseline.
	LastAccountedMinute time.Time

	// Most recently stopped title, used for switch detection.
	LastItemID   string
	LastStopTime *time.Time
}

// RollOver resets the day-scoped counters when now belongs to a different day than DayKey.
// It reports whether a rollover happened.
func (s *UserState) RollOver(now time.Time) bool {
	key := DayKey(now)
	if s.DayKey == key {
		return false
	}
	s.DayKey = key
	s.MinutesConsumed = 0
	s.SeekEvents = nil
	s.SwitchEvents = nil
	return true
}

// AddMinutes charges minutes to today's budget, rolling over first when the day changed.
func (s *UserState) AddMinutes(minutes int, now time.Time) {
	s.RollOver(now)
	if minutes <= 0 {
		return
	}
	s.MinutesConsumed += minutes
}

// CooldownActive reports whether a cooldown is set and still in the future.
func (s *UserState) CooldownActive(now time.Time) bool {
	return s.CooldownUntil != nil && s.CooldownUntil.After(now)
}

// UnlockActive reports whether an unlock is set and still in the future.
func (s *UserState) UnlockActive(now time.Time) bool {
	return s.UnlockUntil != nil && s.UnlockUntil.After(now)
}

// ClearSample forgets the last progress sample and the accrual baseline.
func (s *UserState) ClearSample() {
	s.LastPositionTicks = nil
	s.LastProgressTime = nil
	s.LastPaused = false
	s.LastAccountedMinute = time.Time{}
}

// Summary is the read-only view of a user's state exposed to the admin surface. Expired
// cooldowns and unlocks are reported as absent.
type Summary struct {
	UserID          string     `json:"user_id"`
	DayKey          string     `json:"day_key"`
	MinutesConsumed int        `json:"minutes_consumed"`
	CooldownUntil   *time.Time `json:"cooldown_until"`
	UnlockUntil     *time.Time `json:"unlock_until"`
	UnlockReason    string     `json:"unlock_reason,omitempty"`
	SeekEvents      int        `json:"seek_events"`
	SwitchEvents    int        `json:"switch_events"`
	LastItemID      string     `json:"last_item_id,omitempty"`
}

func (s *UserState) summarize(userID string, now time.Time) Summary {
	sum := Summary{
		UserID:          userID,
		DayKey:          s.DayKey,
		MinutesConsumed: s.MinutesConsumed,
		SeekEvents:      len(s.SeekEvents),
		SwitchEvents:    len(s.SwitchEvents),
		LastItemID:      s.LastItemID,
	}
	if s.CooldownActive(now) {
		sum.CooldownUntil = copyTime(s.CooldownUntil)
	}
	if s.UnlockActive(now) {
		sum.UnlockUntil = copyTime(s.UnlockUntil)
		sum.UnlockReason = s.UnlockReason
	}
	return sum
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
