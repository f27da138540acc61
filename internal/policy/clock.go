package policy

import "time"

// Clock provides time information for policy evaluation.
// This interface allows time to be mocked in tests.
type Clock interface {
	UtcNow() time.Time
	LocalNow() time.Time
}

// RealClock provides actual system time.
type RealClock struct {
	// Location used for LocalNow. Nil means time.Local.
	Location *time.Location
}

// UtcNow returns the current system time in UTC.
func (RealClock) UtcNow() time.Time {
	return time.Now().UTC()
}

// LocalNow returns the current system time in the configured location.
func (c RealClock) LocalNow() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

// TestClock provides fixed time for testing.
type TestClock struct {
	CurrentTime time.Time
	Location    *time.Location
}

// UtcNow returns the test time in UTC.
func (t *TestClock) UtcNow() time.Time {
	return t.CurrentTime.UTC()
}

// LocalNow returns the test time in the test location (UTC when unset).
func (t *TestClock) LocalNow() time.Time {
	if t.Location != nil {
		return t.CurrentTime.In(t.Location)
	}
	return t.CurrentTime.UTC()
}

// Advance moves the test clock forward.
func (t *TestClock) Advance(d time.Duration) {
	t.CurrentTime = t.CurrentTime.Add(d)
}
