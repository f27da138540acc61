package policy

import (
	"fmt"
	"time"
)

// ProfilePolicy is the parental-control policy applied to a single user.
type ProfilePolicy struct {
	Enabled                  bool                    `json:"enabled" mapstructure:"enabled"`
	DailyBudgetMinutes       int                     `json:"daily_budget_minutes" mapstructure:"daily_budget_minutes"`
	BudgetsByWeekday         map[string]int          `json:"budgets_by_weekday" mapstructure:"budgets_by_weekday"` // "Mon", "Sat"
	Schedules                map[string][]TimeWindow `json:"schedules" mapstructure:"schedules"`                   // "Mon", "Mon-Fri", "Sat-Sun"
	SeekRateLimit            RateLimit               `json:"seek_rate_limit" mapstructure:"seek_rate_limit"`
	SwitchRateLimit          RateLimit               `json:"switch_rate_limit" mapstructure:"switch_rate_limit"`
	CooldownOnTripMinutes    int                     `json:"cooldown_on_trip_minutes" mapstructure:"cooldown_on_trip_minutes"`
	UnlockMaxDurationMinutes int                     `json:"unlock_max_duration_minutes" mapstructure:"unlock_max_duration_minutes"`
	PinOverridesAllowed      bool                    `json:"pin_overrides_allowed" mapstructure:"pin_overrides_allowed"`
	PinRequiredForExtraTime  bool                    `json:"pin_required_for_extra_time" mapstructure:"pin_required_for_extra_time"`
	BlockedCollections       []string                `json:"blocked_collections" mapstructure:"blocked_collections"`
	Notes                    string                  `json:"notes" mapstructure:"notes"`
}

// TimeWindow is an allowed time-of-day range in "HH:MM" local time.
type TimeWindow struct {
	Start string `json:"start" mapstructure:"start"`
	End   string `json:"end" mapstructure:"end"`
}

// RateLimit caps the number of events within a sliding window.
type RateLimit struct {
	MaxEvents     int `json:"max_events" mapstructure:"max_events"`
	WindowMinutes int `json:"window_minutes" mapstructure:"window_minutes"`
}

// Window returns the rate limit window as a duration.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

// DefaultPolicy returns the permissive policy used for users without a configured profile.
func DefaultPolicy() ProfilePolicy {
	return ProfilePolicy{
		Enabled:                  true,
		DailyBudgetMinutes:       90,
		BudgetsByWeekday:         map[string]int{},
		Schedules:                map[string][]TimeWindow{},
		SeekRateLimit:            RateLimit{MaxEvents: 6, WindowMinutes: 10},
		SwitchRateLimit:          RateLimit{MaxEvents: 6, WindowMinutes: 10},
		CooldownOnTripMinutes:    5,
		PinOverridesAllowed:      true,
		PinRequiredForExtraTime:  true,
		UnlockMaxDurationMinutes: 180,
		BlockedCollections:       []string{},
	}
}

// SeedPolicy returns the recommended profile applied when an admin seeds a new child profile.
func SeedPolicy() ProfilePolicy {
	p := DefaultPolicy()
	p.DailyBudgetMinutes = 240
	p.Schedules = map[string][]TimeWindow{
		LabelWeekdays: {{Start: "07:00", End: "19:00"}},
		LabelWeekend:  {{Start: "07:00", End: "19:00"}},
	}
	p.SeekRateLimit = RateLimit{MaxEvents: 3, WindowMinutes: 30}
	p.SwitchRateLimit = RateLimit{MaxEvents: 2, WindowMinutes: 30}
	p.CooldownOnTripMinutes = 30
	return p
}

// Validate checks that numeric fields are usable.
func (p ProfilePolicy) Validate() error {
	if p.DailyBudgetMinutes < 0 {
		return fmt.Errorf("daily_budget_minutes must not be negative: %d", p.DailyBudgetMinutes)
	}
	for label, minutes := range p.BudgetsByWeekday {
		if minutes < 0 {
			return fmt.Errorf("budget for %q must not be negative: %d", label, minutes)
		}
	}
	if err := p.SeekRateLimit.validate("seek_rate_limit"); err != nil {
		return err
	}
	if err := p.SwitchRateLimit.validate("switch_rate_limit"); err != nil {
		return err
	}
	if p.CooldownOnTripMinutes < 0 {
		return fmt.Errorf("cooldown_on_trip_minutes must not be negative: %d", p.CooldownOnTripMinutes)
	}
	if p.UnlockMaxDurationMinutes < 0 {
		return fmt.Errorf("unlock_max_duration_minutes must not be negative: %d", p.UnlockMaxDurationMinutes)
	}
	return nil
}

func (r RateLimit) validate(name string) error {
	if r.MaxEvents < 0 || r.WindowMinutes < 0 {
		return fmt.Errorf("%s must not be negative: %+v", name, r)
	}
	return nil
}
