package policy

import (
	"strings"
	"time"
)

// DailyBudget returns the minute budget for a weekday. Only single-day labels are
// consulted; range labels such as "Mon-Fri" fall through to DailyBudgetMinutes.
func DailyBudget(p ProfilePolicy, day time.Weekday) int {
	label := DayLabel(day)
	if minutes, ok := p.BudgetsByWeekday[label]; ok {
		return minutes
	}
	for key, minutes := range p.BudgetsByWeekday {
		if strings.EqualFold(key, label) {
			return minutes
		}
	}
	return p.DailyBudgetMinutes
}
