package enforce

import (
	"testing"
	"time"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC) // Monday

func newState(now time.Time) *state.UserState {
	return &state.UserState{DayKey: state.DayKey(now)}
}

func TestLimiter_TripsOnNPlusOneAndStores(t *testing.T) {
	limit := policy.RateLimit{MaxEvents: 3, WindowMinutes: 30}
	var events []time.Time

	for i := 0; i < 3; i++ {
		if !CheckAndRecord(&events, limit, testNow.Add(time.Duration(i)*time.Minute)) {
			t.Fatalf("event %d denied, want allow", i+1)
		}
	}
	if CheckAndRecord(&events, limit, testNow.Add(4*time.Minute)) {
		t.Fatal("4th event allowed, want deny")
	}
	if len(events) != 4 {
		t.Errorf("len(events) = %d, want 4 (tripping event is stored)", len(events))
	}
}

func TestLimiter_AllowsAgainAfterWindow(t *testing.T) {
	limit := policy.RateLimit{MaxEvents: 2, WindowMinutes: 10}
	events := []time.Time{testNow, testNow.Add(time.Minute)}

	if _, allow := Check(events, limit, testNow.Add(2*time.Minute)); allow {
		t.Fatal("Check() allowed with full window")
	}

	pruned, allow := Check(events, limit, testNow.Add(11*time.Minute+time.Second))
	if !allow {
		t.Fatal("Check() denied after events left the window")
	}
	if len(pruned) != 0 {
		t.Errorf("pruned = %v, want empty", pruned)
	}
}

func TestPrune(t *testing.T) {
	events := []time.Time{
		testNow.Add(-20 * time.Minute),
		testNow.Add(-10 * time.Minute),
		testNow.Add(-5 * time.Minute),
	}
	got := Prune(events, 10*time.Minute, testNow)
	if len(got) != 2 || !got[0].Equal(testNow.Add(-10*time.Minute)) {
		t.Errorf("Prune() = %v, want last two (boundary kept)", got)
	}
}

func TestRecord_ClampsBackwardTime(t *testing.T) {
	events := []time.Time{testNow}
	events = Record(events, testNow.Add(-time.Second))
	if !events[1].Equal(testNow) {
		t.Errorf("Record() appended %v, want clamp to %v", events[1], testNow)
	}
}

func TestEvaluateStart(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	future := testNow.Add(10 * time.Minute)
	past := testNow.Add(-time.Minute)

	disabled := policy.DefaultPolicy()
	disabled.Enabled = false

	tests := []struct {
		name     string
		policy   policy.ProfilePolicy
		consumed int
		cooldown *time.Time
		unlock   *time.Time
		budget   int
		want     Decision
	}{
		{"fresh user", policy.DefaultPolicy(), 0, nil, nil, 90, Allowed()},
		{"cooldown beats disabled policy", disabled, 0, &future, nil, 90, Denied(ReasonCooldown)},
		{"expired cooldown ignored", policy.DefaultPolicy(), 0, &past, nil, 90, Allowed()},
		{"disabled ignores budget", disabled, 500, nil, nil, 90, Allowed()},
		{"budget exhausted", policy.DefaultPolicy(), 90, nil, nil, 90, Denied(ReasonBudgetExhausted)},
		{"unlock not consulted", policy.DefaultPolicy(), 90, nil, &future, 90, Denied(ReasonBudgetExhausted)},
		{"one minute left", policy.DefaultPolicy(), 89, nil, nil, 90, Allowed()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState(testNow)
			st.MinutesConsumed = tt.consumed
			st.CooldownUntil = tt.cooldown
			st.UnlockUntil = tt.unlock

			got := engine.EvaluateStart("kid", tt.policy, st, testNow, testNow, tt.budget)
			if got.Allow != tt.want.Allow || got.Reason != tt.want.Reason {
				t.Errorf("EvaluateStart() = %+v, want %+v", got, tt.want)
			}
			if got.CooldownMinutes != nil {
				t.Errorf("start decisions carry no cooldown, got %d", *got.CooldownMinutes)
			}
		})
	}
}

func TestScenario_BudgetExhaustion(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	p := policy.DefaultPolicy()
	p.DailyBudgetMinutes = 240
	p.SeekRateLimit = policy.RateLimit{MaxEvents: 3, WindowMinutes: 30}

	st := newState(testNow)
	st.AddMinutes(239, testNow)
	budget := policy.DailyBudget(p, testNow.Weekday())

	if d := engine.EvaluateStart("kid", p, st, testNow, testNow, budget); !d.Allow {
		t.Fatalf("EvaluateStart() at 239 = %+v, want allow", d)
	}

	st.AddMinutes(1, testNow)
	d := engine.EvaluateStart("kid", p, st, testNow, testNow, budget)
	if d.Allow || d.Reason != ReasonBudgetExhausted {
		t.Fatalf("EvaluateStart() at 240 = %+v, want %s", d, ReasonBudgetExhausted)
	}
}

func TestScenario_SeekRateLimit(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	p := policy.DefaultPolicy()
	p.SeekRateLimit = policy.RateLimit{MaxEvents: 3, WindowMinutes: 30}
	p.CooldownOnTripMinutes = 30

	st := newState(testNow)
	for i := 0; i < 3; i++ {
		if d := engine.EvaluateSeek("kid", p, st, testNow.Add(time.Duration(i)*5*time.Minute)); !d.Allow {
			t.Fatalf("seek %d = %+v, want allow", i+1, d)
		}
	}

	d := engine.EvaluateSeek("kid", p, st, testNow.Add(20*time.Minute))
	if d.Allow || d.Reason != ReasonSeekRateLimit {
		t.Fatalf("4th seek = %+v, want %s", d, ReasonSeekRateLimit)
	}
	if d.CooldownMinutes == nil || *d.CooldownMinutes != 30 {
		t.Errorf("CooldownMinutes = %v, want 30", d.CooldownMinutes)
	}
}

func TestEvaluateSwitch(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	p := policy.DefaultPolicy()
	p.SwitchRateLimit = policy.RateLimit{MaxEvents: 2, WindowMinutes: 30}
	p.CooldownOnTripMinutes = 15

	st := newState(testNow)
	engine.EvaluateSwitch("kid", p, st, testNow)
	engine.EvaluateSwitch("kid", p, st, testNow.Add(time.Minute))

	d := engine.EvaluateSwitch("kid", p, st, testNow.Add(2*time.Minute))
	if d.Allow || d.Reason != ReasonSwitchRateLimit || *d.CooldownMinutes != 15 {
		t.Fatalf("3rd switch = %+v, want %s with 15 minute cooldown", d, ReasonSwitchRateLimit)
	}

	// Every earlier switch has left the 30 minute window.
	d = engine.EvaluateSwitch("kid", p, st, testNow.Add(32*time.Minute+time.Second))
	if !d.Allow {
		t.Errorf("switch after window = %+v, want allow", d)
	}
}

func TestDetector_SeekTolerance(t *testing.T) {
	d := NewDetector(0)

	tests := []struct {
		name      string
		tickDelta int64 // seconds of position movement
		wallDelta time.Duration
		want      bool
	}{
		{"linear playback", 10, 10 * time.Second, false},
		{"within tolerance ahead", 15, 10 * time.Second, false},
		{"exactly at tolerance", 5, 0, false},
		{"within tolerance behind", 6, 10 * time.Second, false},
		{"30s backward in 1s", -30, time.Second, true},
		{"forward jump", 120, 10 * time.Second, true},
		{"stalled position", 0, 10 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState(testNow)
			base := int64(600) * TicksPerSecond
			d.Observe(st, base, false, testNow)

			got := d.IsSeek(st, base+tt.tickDelta*TicksPerSecond, false, testNow.Add(tt.wallDelta))
			if got != tt.want {
				t.Errorf("IsSeek() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_NoSeekWithoutPrevious(t *testing.T) {
	d := NewDetector(5 * time.Second)
	st := newState(testNow)

	if d.IsSeek(st, 100*TicksPerSecond, false, testNow) {
		t.Error("first sample must not be a seek")
	}
}

func TestDetector_PausedSamples(t *testing.T) {
	d := NewDetector(5 * time.Second)

	tests := []struct {
		name       string
		prevPaused bool
		curPaused  bool
		tickDelta  int64 // seconds of position movement
		wallDelta  time.Duration
		want       bool
	}{
		{"still paused", true, true, 0, time.Minute, false},
		{"resumed in place", true, false, 0, time.Minute, false},
		{"resumed partway through", true, false, 3, 10 * time.Second, false},
		{"paused partway through", false, true, 8, 10 * time.Second, false},
		{"scrubbed back while paused", true, true, -300, 30 * time.Second, true},
		{"scrubbed forward while paused", true, true, 300, 30 * time.Second, true},
		{"jumped back across a pause", false, true, -60, 10 * time.Second, true},
		{"small jitter while paused", true, true, -4, 10 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState(testNow)
			base := int64(600) * TicksPerSecond
			d.Observe(st, base, tt.prevPaused, testNow)

			got := d.IsSeek(st, base+tt.tickDelta*TicksPerSecond, tt.curPaused, testNow.Add(tt.wallDelta))
			if got != tt.want {
				t.Errorf("IsSeek() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_SwitchAndStop(t *testing.T) {
	d := NewDetector(0)
	st := newState(testNow)

	if d.IsSwitch(st, "movie-b") {
		t.Error("no previous title, no switch")
	}

	d.Observe(st, 42, false, testNow)
	d.OnStop(st, "movie-a", testNow)
	if st.LastPositionTicks != nil || st.LastProgressTime != nil {
		t.Error("stop must clear the last sample")
	}
	if st.LastItemID != "movie-a" || st.LastStopTime == nil {
		t.Errorf("stop must record the title, got %q %v", st.LastItemID, st.LastStopTime)
	}

	if !d.IsSwitch(st, "movie-b") {
		t.Error("different title after stop is a switch")
	}
	if d.IsSwitch(st, "movie-a") {
		t.Error("same title after stop is not a switch")
	}
}
