package enforce

import (
	"time"

	"github.com/goodtune/parentguard/internal/policy"
)

// Prune drops events older than now-window. Events are in time order, so the retained
// entries form a suffix of the slice.
func Prune(events []time.Time, window time.Duration, now time.Time) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0], events[i:]...)
}

// Check prunes events to the window and reports whether another event is allowed, that is
// whether fewer than maxEvents remain.
func Check(events []time.Time, limit policy.RateLimit, now time.Time) ([]time.Time, bool) {
	events = Prune(events, limit.Window(), now)
	return events, len(events) < limit.MaxEvents
}

// Record appends an event. Timestamps are clamped so the slice never goes backwards.
func Record(events []time.Time, now time.Time) []time.Time {
	if n := len(events); n > 0 && now.Before(events[n-1]) {
		now = events[n-1]
	}
	return append(events, now)
}

// CheckAndRecord checks the limit and then records the attempted event whatever the outcome,
// so the (maxEvents+1)-th event within the window is the first denied and is still stored.
func CheckAndRecord(events *[]time.Time, limit policy.RateLimit, now time.Time) bool {
	pruned, allow := Check(*events, limit, now)
	*events = Record(pruned, now)
	return allow
}
