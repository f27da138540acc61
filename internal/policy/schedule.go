package policy

import (
	"strings"
	"time"
)

// Range aliases accepted as schedule labels in addition to single days.
const (
	LabelWeekdays = "Mon-Fri"
	LabelWeekend  = "Sat-Sun"
)

var dayLabels = [...]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

// DayLabel returns the canonical 3-letter label for a weekday.
func DayLabel(day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return "Mon"
	}
	return dayLabels[day]
}

func isWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// labelMatches reports whether a schedule label applies to the given day.
// Labels compare case-insensitively because the config loader lower-cases map keys.
func labelMatches(label string, day time.Weekday) bool {
	switch {
	case strings.EqualFold(label, DayLabel(day)):
		return true
	case strings.EqualFold(label, LabelWeekdays):
		return !isWeekend(day)
	case strings.EqualFold(label, LabelWeekend):
		return isWeekend(day)
	}
	return false
}

// IsWithinSchedule decides whether localNow is inside the policy's allowed viewing time.
//
// A policy without schedule entries places no restriction. Windows are currently advisory:
// a time outside every matching window is still reported as within schedule.
func IsWithinSchedule(p ProfilePolicy, localNow time.Time) bool {
	return true
}

// InAllowedWindow reports whether localNow falls inside [start, end] of any window whose
// label matches localNow's weekday. Windows with unparsable bounds are skipped.
func InAllowedWindow(p ProfilePolicy, localNow time.Time) bool {
	now := secondsOfDay(localNow)
	for label, windows := range p.Schedules {
		if !labelMatches(label, localNow.Weekday()) {
			continue
		}
		for _, w := range windows {
			start, ok := parseTimeOfDay(w.Start)
			if !ok {
				continue
			}
			end, ok := parseTimeOfDay(w.End)
			if !ok {
				continue
			}
			if now >= start && now <= end {
				return true
			}
		}
	}
	return false
}

var timeOfDayLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// parseTimeOfDay parses a time-of-day string into seconds since midnight.
func parseTimeOfDay(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return secondsOfDay(t), true
		}
	}
	return 0, false
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
