package enforce

import (
	"time"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
	"github.com/rs/zerolog"
)

// Engine applies the decision protocol to one user's state. Callers hold the user's critical
// section for the duration of a call.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "engine").Logger()}
}

// EvaluateStart decides whether playback may start. An active cooldown denies before anything
// else; a disabled policy then allows; otherwise the day's budget must not be used up.
// Schedule is checked by the caller, and an unlock is not consulted.
func (e *Engine) EvaluateStart(userID string, p policy.ProfilePolicy, st *state.UserState, utcNow, localNow time.Time, dailyBudgetMinutes int) Decision {
	if st.CooldownActive(utcNow) {
		e.logger.Debug().Str("user_id", userID).Time("cooldown_until", *st.CooldownUntil).Msg("Start denied by cooldown")
		return Denied(ReasonCooldown)
	}

	if !p.Enabled {
		return Allowed()
	}

	if st.MinutesConsumed >= dailyBudgetMinutes {
		e.logger.Debug().
			Str("user_id", userID).
			Int("consumed", st.MinutesConsumed).
			Int("budget", dailyBudgetMinutes).
			Str("weekday", localNow.Weekday().String()).
			Msg("Start denied by budget")
		return Denied(ReasonBudgetExhausted)
	}

	return Allowed()
}

// EvaluateSeek applies the seek rate limit and records the seek.
func (e *Engine) EvaluateSeek(userID string, p policy.ProfilePolicy, st *state.UserState, utcNow time.Time) Decision {
	if CheckAndRecord(&st.SeekEvents, p.SeekRateLimit, utcNow) {
		return Allowed()
	}
	e.logger.Debug().Str("user_id", userID).Int("events", len(st.SeekEvents)).Msg("Seek rate limit tripped")
	return DeniedWithCooldown(ReasonSeekRateLimit, p.CooldownOnTripMinutes)
}

// EvaluateSwitch applies the switch rate limit and records the switch.
func (e *Engine) EvaluateSwitch(userID string, p policy.ProfilePolicy, st *state.UserState, utcNow time.Time) Decision {
	if CheckAndRecord(&st.SwitchEvents, p.SwitchRateLimit, utcNow) {
		return Allowed()
	}
	e.logger.Debug().Str("user_id", userID).Int("events", len(st.SwitchEvents)).Msg("Switch rate limit tripped")
	return DeniedWithCooldown(ReasonSwitchRateLimit, p.CooldownOnTripMinutes)
}
