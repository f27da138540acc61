package policy

import (
	"testing"
	"time"
)

// 2024-01-15 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestIsWithinSchedule_NoEntriesAlwaysAllows(t *testing.T) {
	p := DefaultPolicy()

	for day := 15; day <= 21; day++ {
		for hour := 0; hour < 24; hour += 3 {
			now := at(day, hour, 17)
			if !IsWithinSchedule(p, now) {
				t.Fatalf("IsWithinSchedule(%v) = false, want true for empty schedule", now)
			}
		}
	}
}

func TestInAllowedWindow(t *testing.T) {
	p := DefaultPolicy()
	p.Schedules = map[string][]TimeWindow{
		"Mon":         {{Start: "16:00", End: "18:00"}},
		LabelWeekdays: {{Start: "07:00", End: "08:00"}},
		LabelWeekend:  {{Start: "09:00", End: "12:30"}},
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"monday single-day window", at(15, 17, 0), true},
		{"monday range window", at(15, 7, 30), true},
		{"monday window start inclusive", at(15, 16, 0), true},
		{"monday window end inclusive", at(15, 18, 0), true},
		{"monday outside", at(15, 12, 0), false},
		{"tuesday only range applies", at(16, 17, 0), false},
		{"tuesday range window", at(16, 7, 45), true},
		{"saturday weekend window", at(20, 10, 0), true},
		{"sunday weekend window", at(21, 12, 30), true},
		{"sunday after window", at(21, 12, 31), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InAllowedWindow(p, tt.now); got != tt.want {
				t.Errorf("InAllowedWindow(%s) = %v, want %v", tt.now.Format("Mon 15:04"), got, tt.want)
			}
			// Windows are advisory: every instant is within schedule.
			if !IsWithinSchedule(p, tt.now) {
				t.Errorf("IsWithinSchedule(%s) = false, want true", tt.now.Format("Mon 15:04"))
			}
		})
	}
}

func TestInAllowedWindow_LowercaseLabels(t *testing.T) {
	p := DefaultPolicy()
	p.Schedules = map[string][]TimeWindow{
		"mon-fri": {{Start: "07:00", End: "19:00"}},
	}

	if !InAllowedWindow(p, at(17, 10, 0)) {
		t.Error("lower-cased range label should match a weekday")
	}
	if InAllowedWindow(p, at(20, 10, 0)) {
		t.Error("weekday range label should not match Saturday")
	}
}

func TestInAllowedWindow_SkipsMalformedWindows(t *testing.T) {
	p := DefaultPolicy()
	p.Schedules = map[string][]TimeWindow{
		"Mon": {
			{Start: "not-a-time", End: "23:59"},
			{Start: "08:00", End: "25:99"},
			{Start: "9:00 AM", End: "10:00 AM"},
		},
	}

	if InAllowedWindow(p, at(15, 12, 0)) {
		t.Error("malformed windows must be skipped")
	}
	if !InAllowedWindow(p, at(15, 9, 30)) {
		t.Error("12-hour window should still be honored")
	}
	if !IsWithinSchedule(p, at(15, 12, 0)) {
		t.Error("IsWithinSchedule should not fail on malformed windows")
	}
}

func TestDailyBudget(t *testing.T) {
	p := DefaultPolicy()
	p.DailyBudgetMinutes = 120
	p.BudgetsByWeekday = map[string]int{
		"Sat":         300,
		"sun":         240,
		LabelWeekdays: 60,
	}

	tests := []struct {
		day  time.Weekday
		want int
	}{
		{time.Saturday, 300},
		{time.Sunday, 240},
		{time.Monday, 120}, // range labels are not consulted
		{time.Friday, 120},
	}

	for _, tt := range tests {
		t.Run(tt.day.String(), func(t *testing.T) {
			if got := DailyBudget(p, tt.day); got != tt.want {
				t.Errorf("DailyBudget(%s) = %d, want %d", tt.day, got, tt.want)
			}
		})
	}
}

func TestDayLabel(t *testing.T) {
	want := map[time.Weekday]string{
		time.Sunday: "Sun", time.Monday: "Mon", time.Tuesday: "Tue", time.Wednesday: "Wed",
		time.Thursday: "Thu", time.Friday: "Fri", time.Saturday: "Sat",
	}
	for day, label := range want {
		if got := DayLabel(day); got != label {
			t.Errorf("DayLabel(%s) = %q, want %q", day, got, label)
		}
	}
}

func TestProfilePolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate() error = %v", err)
	}
	if err := SeedPolicy().Validate(); err != nil {
		t.Fatalf("SeedPolicy().Validate() error = %v", err)
	}

	p := DefaultPolicy()
	p.SeekRateLimit.MaxEvents = -1
	if err := p.Validate(); err == nil {
		t.Error("expected error for negative seek max_events")
	}

	p = DefaultPolicy()
	p.BudgetsByWeekday = map[string]int{"Mon": -5}
	if err := p.Validate(); err == nil {
		t.Error("expected error for negative weekday budget")
	}
}
