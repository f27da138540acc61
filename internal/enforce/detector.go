package enforce

import (
	"math"
	"time"

	"github.com/goodtune/parentguard/internal/state"
)

const (
	// TicksPerSecond converts player position ticks to seconds.
	TicksPerSecond = 10_000_000

	// DefaultSeekTolerance absorbs buffering and network jitter between samples.
	DefaultSeekTolerance = 5 * time.Second
)

// Detector infers seeks and title switches from raw playback samples.
type Detector struct {
	Tolerance time.Duration
}

// NewDetector returns a detector with the given tolerance, or the default when zero.
func NewDetector(tolerance time.Duration) Detector {
	if tolerance <= 0 {
		tolerance = DefaultSeekTolerance
	}
	return Detector{Tolerance: tolerance}
}

// IsSeek reports whether the sample jumped relative to the previous one: position moved by
// more than Tolerance away from the wall-clock time elapsed, in either direction. When either
// sample is paused the player may have run for any part of the interval, so the position may
// advance by anything from zero to the elapsed time; movement outside that range is a seek.
func (d Detector) IsSeek(st *state.UserState, positionTicks int64, paused bool, now time.Time) bool {
	if st.LastPositionTicks == nil || st.LastProgressTime == nil {
		return false
	}

	tickDiff := float64(positionTicks-*st.LastPositionTicks) / TicksPerSecond
	wallDiff := now.Sub(*st.LastProgressTime).Seconds()
	tolerance := d.Tolerance.Seconds()

	if paused || st.LastPaused {
		return tickDiff < -tolerance || tickDiff > math.Max(wallDiff, 0)+tolerance
	}
	return math.Abs(tickDiff-wallDiff) > tolerance
}

// Observe stores the sample for the next comparison.
func (d Detector) Observe(st *state.UserState, positionTicks int64, paused bool, now time.Time) {
	ticks := positionTicks
	at := now
	st.LastPositionTicks = &ticks
	st.LastProgressTime = &at
	st.LastPaused = paused
}

// IsSwitch reports whether starting itemID switches away from the most recently stopped title.
func (d Detector) IsSwitch(st *state.UserState, itemID string) bool {
	if itemID == "" || st.LastItemID == "" || st.LastStopTime == nil {
		return false
	}
	return st.LastItemID != itemID
}

// OnStart forgets the previous sample; positions of a new playback are not comparable.
func (d Detector) OnStart(st *state.UserState) {
	st.ClearSample()
}

// OnStop clears the sample and remembers the stopped title for switch detection.
func (d Detector) OnStop(st *state.UserState, itemID string, now time.Time) {
	st.ClearSample()
	if itemID != "" {
		at := now
		st.LastItemID = itemID
		st.LastStopTime = &at
	}
}
