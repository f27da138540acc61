package usage

import (
	"time"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
)

// BudgetTracker resolves daily budgets and charges watch time against them.
type BudgetTracker struct {
	// MaxGap is the longest silence between progress samples still counted as watching.
	// Longer gaps restart accrual from the current minute. Zero disables the check.
	MaxGap time.Duration
}

// DailyBudget returns the minute budget for the given weekday.
func (b BudgetTracker) DailyBudget(p policy.ProfilePolicy, day time.Weekday) int {
	return policy.DailyBudget(p, day)
}

// AddMinutes charges minutes to the user's day, rolling over first when the day changed.
func (b BudgetTracker) AddMinutes(st *state.UserState, minutes int, now time.Time) {
	st.AddMinutes(minutes, now)
}

// Accrue charges one minute per wall-clock minute boundary crossed since the last charged
// minute. Progress samples arrive far more often than once a minute, so nothing is charged
// until a boundary is crossed. Paused samples charge nothing and drop the baseline. It returns
// the minutes charged.
func (b BudgetTracker) Accrue(st *state.UserState, now time.Time, paused bool) int {
	bucket := now.Truncate(time.Minute)

	if paused {
		st.LastAccountedMinute = time.Time{}
		return 0
	}

	if st.LastAccountedMinute.IsZero() ||
		(b.MaxGap > 0 && bucket.Sub(st.LastAccountedMinute) > b.MaxGap+time.Minute) {
		st.LastAccountedMinute = bucket
		return 0
	}

	if !bucket.After(st.LastAccountedMinute) {
		return 0
	}

	minutes := int(bucket.Sub(st.LastAccountedMinute) / time.Minute)
	st.LastAccountedMinute = bucket
	b.AddMinutes(st, minutes, now)
	return minutes
}
