// Package enforce turns playback events into allow/deny decisions.
//
// Engine holds the decision protocol and never calls out. Service wraps it with the policy
// provider, the state store and the side effects that follow a decision (stopping sessions,
// setting cooldowns, filing admin requests).
package enforce

// Denial reasons.
const (
	ReasonCooldown        = "cooldown"
	ReasonBudgetExhausted = "daily_budget_exhausted"
	ReasonSeekRateLimit   = "seek_rate_limit"
	ReasonSwitchRateLimit = "switch_rate_limit"
	ReasonOutsideSchedule = "outside_schedule"
)

// Decision is the outcome of evaluating one event.
type Decision struct {
	Allow           bool   `json:"allow"`
	Reason          string `json:"reason,omitempty"`
	CooldownMinutes *int   `json:"cooldown_minutes,omitempty"`
}

// Allowed returns an allow decision.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Denied returns a deny decision without a suggested cooldown.
func Denied(reason string) Decision {
	return Decision{Reason: reason}
}

// DeniedWithCooldown returns a deny decision carrying a suggested lockout.
func DeniedWithCooldown(reason string, minutes int) Decision {
	return Decision{Reason: reason, CooldownMinutes: &minutes}
}

func (d Decision) outcome() string {
	if d.Allow {
		return "allow"
	}
	return "deny"
}
