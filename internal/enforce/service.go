package enforce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/parentguard/internal/metrics"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
	"github.com/goodtune/parentguard/internal/storage"
	"github.com/goodtune/parentguard/internal/usage"
	"github.com/rs/zerolog"
)

// UnlockReasonApproved is recorded when an unlock comes from an approved request.
const UnlockReasonApproved = "approved_request"

// ErrInvalidDuration is returned for non-positive lock or unlock durations.
var ErrInvalidDuration = errors.New("duration must be positive")

// SessionController stops playback sessions on the media host. Stop is best effort.
type SessionController interface {
	Stop(ctx context.Context, sessionID string) error
}

// PlaybackEvent is a start, progress or stop notification from the media host.
type PlaybackEvent struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	ItemID        string `json:"item_id"`
	PositionTicks *int64 `json:"position_ticks,omitempty"`
	IsPaused      bool   `json:"is_paused"`
}

// Config tunes the service.
type Config struct {
	SeekTolerance         time.Duration
	EnforceDuringPlayback bool
	FileRequestsOnBlock   bool
}

// Deps are the collaborators the service is built from. Requests and History may be nil.
type Deps struct {
	Policies   policy.Provider
	Clock      policy.Clock
	States     *state.Store
	Tracker    *usage.Tracker
	Controller SessionController
	Requests   storage.RequestStore
	History    storage.UsageStore
}

// Service routes playback events and admin operations through the engine.
type Service struct {
	policies   policy.Provider
	clock      policy.Clock
	states     *state.Store
	tracker    *usage.Tracker
	controller SessionController
	requests   storage.RequestStore
	history    storage.UsageStore

	engine   *Engine
	detector Detector
	budget   usage.BudgetTracker
	config   Config
	logger   zerolog.Logger
}

// NewService wires a service.
func NewService(deps Deps, config Config, logger zerolog.Logger) *Service {
	var maxGap time.Duration
	if deps.Tracker != nil {
		maxGap = deps.Tracker.InactivityTimeout()
	}

	return &Service{
		policies:   deps.Policies,
		clock:      deps.Clock,
		states:     deps.States,
		tracker:    deps.Tracker,
		controller: deps.Controller,
		requests:   deps.Requests,
		history:    deps.History,
		engine:     NewEngine(logger),
		detector:   NewDetector(config.SeekTolerance),
		budget:     usage.BudgetTracker{MaxGap: maxGap},
		config:     config,
		logger:     logger.With().Str("component", "enforcement").Logger(),
	}
}

// outcome carries what happened inside a user's critical section out to the side effects.
type outcome struct {
	decision Decision
	event    string
	minutes  int
	dayKey   string
	detected string // "seek" or "switch" when one was detected
}

// OnPlaybackStart evaluates a start. An active cooldown denies outright; otherwise a title
// switch is rate limited first, then schedule, then the start protocol. Denials stop the session.
func (s *Service) OnPlaybackStart(ctx context.Context, ev PlaybackEvent) Decision {
	return s.start(ctx, ev, true)
}

// start runs the start protocol. A live start resets the progress sample and registers the
// session; a simulated one leaves both alone.
func (s *Service) start(ctx context.Context, ev PlaybackEvent, live bool) Decision {
	started := time.Now()
	ev.UserID = policy.NormalizeUserID(ev.UserID)
	p := s.policies.GetEffectivePolicy(ctx, ev.UserID)
	localNow := s.clock.LocalNow()

	var out outcome
	out.event = "start"
	s.states.With(ev.UserID, func(st *state.UserState, now time.Time) {
		if live {
			s.detector.OnStart(st)
		}

		if st.CooldownActive(now) {
			out.decision = Denied(ReasonCooldown)
			return
		}

		if s.detector.IsSwitch(st, ev.ItemID) {
			out.detected = "switch"
			if d := s.engine.EvaluateSwitch(ev.UserID, p, st, now); !d.Allow {
				out.decision = d
				applyCooldown(st, now, d)
				return
			}
		}

		if !policy.IsWithinSchedule(p, localNow) {
			out.decision = Denied(ReasonOutsideSchedule)
			return
		}

		budget := s.budget.DailyBudget(p, localNow.Weekday())
		out.decision = s.engine.EvaluateStart(ev.UserID, p, st, now, localNow, budget)
		applyCooldown(st, now, out.decision)
	})

	if live && out.decision.Allow && s.tracker != nil {
		s.tracker.Start(ev.SessionID, ev.UserID, ev.ItemID)
	}

	s.finish(ctx, ev, out, started)
	return out.decision
}

// OnPlaybackProgress handles a progress sample: seek detection, budget accrual, and, when
// enabled, re-checking that playback may continue.
func (s *Service) OnPlaybackProgress(ctx context.Context, ev PlaybackEvent) Decision {
	started := time.Now()
	ev.UserID = policy.NormalizeUserID(ev.UserID)
	p := s.policies.GetEffectivePolicy(ctx, ev.UserID)
	localNow := s.clock.LocalNow()

	var out outcome
	out.event = "progress"
	out.decision = Allowed()
	s.states.With(ev.UserID, func(st *state.UserState, now time.Time) {
		if ev.PositionTicks != nil {
			seek := s.detector.IsSeek(st, *ev.PositionTicks, ev.IsPaused, now)
			s.detector.Observe(st, *ev.PositionTicks, ev.IsPaused, now)
			if seek {
				out.detected = "seek"
				if d := s.engine.EvaluateSeek(ev.UserID, p, st, now); !d.Allow {
					out.decision = d
					applyCooldown(st, now, d)
					return
				}
			}
		}

		out.minutes = s.budget.Accrue(st, now, ev.IsPaused)
		out.dayKey = st.DayKey

		if !s.config.EnforceDuringPlayback {
			return
		}
		if !policy.IsWithinSchedule(p, localNow) {
			out.decision = Denied(ReasonOutsideSchedule)
			return
		}
		budget := s.budget.DailyBudget(p, localNow.Weekday())
		out.decision = s.engine.EvaluateStart(ev.UserID, p, st, now, localNow, budget)
	})

	if out.decision.Allow && s.tracker != nil {
		s.tracker.Touch(ev.SessionID, ev.UserID, ev.ItemID, ev.IsPaused)
	}

	s.finish(ctx, ev, out, started)
	return out.decision
}

// OnPlaybackStop charges any minute boundaries crossed since the last sample and remembers the
// stopped title for switch detection.
func (s *Service) OnPlaybackStop(ctx context.Context, ev PlaybackEvent) {
	ev.UserID = policy.NormalizeUserID(ev.UserID)
	var out outcome
	s.states.With(ev.UserID, func(st *state.UserState, now time.Time) {
		if st.LastProgressTime != nil && !st.LastPaused {
			out.minutes = s.budget.Accrue(st, now, false)
			out.dayKey = st.DayKey
		}
		s.detector.OnStop(st, ev.ItemID, now)
	})

	if s.tracker != nil {
		s.tracker.Stop(ev.SessionID)
	}
	s.recordUsage(ctx, ev.UserID, out)

	s.logger.Debug().
		Str("user_id", ev.UserID).
		Str("item_id", ev.ItemID).
		Str("session_id", ev.SessionID).
		Msg("Playback stopped")
}

// finish performs everything that happens after a decision, outside the critical section.
func (s *Service) finish(ctx context.Context, ev PlaybackEvent, out outcome, started time.Time) {
	d := out.decision

	metrics.DecisionsTotal.WithLabelValues(out.event, d.outcome(), d.Reason).Inc()
	metrics.DecisionDuration.WithLabelValues(out.event).Observe(time.Since(started).Seconds())
	metrics.TrackedUsers.Set(float64(s.states.Len()))
	switch out.detected {
	case "seek":
		metrics.SeeksDetected.WithLabelValues(ev.UserID).Inc()
	case "switch":
		metrics.SwitchesDetected.WithLabelValues(ev.UserID).Inc()
	}

	s.recordUsage(ctx, ev.UserID, out)

	if d.Allow {
		return
	}

	if d.CooldownMinutes != nil && *d.CooldownMinutes > 0 {
		metrics.CooldownsSet.WithLabelValues(d.Reason).Inc()
	}

	s.logger.Info().
		Str("user_id", ev.UserID).
		Str("session_id", ev.SessionID).
		Str("item_id", ev.ItemID).
		Str("event", out.event).
		Str("reason", d.Reason).
		Msg("Playback blocked")

	s.stopSession(ctx, ev.SessionID, d.Reason)
	if s.config.FileRequestsOnBlock {
		s.fileRequest(ctx, ev.UserID, d.Reason)
	}
}

func (s *Service) recordUsage(ctx context.Context, userID string, out outcome) {
	if out.minutes <= 0 {
		return
	}
	metrics.UsageMinutesConsumed.WithLabelValues(userID).Add(float64(out.minutes))

	if s.history == nil {
		return
	}
	if err := s.history.IncrementDailyUsage(ctx, out.dayKey, userID, out.minutes); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record usage history")
	}
}

func (s *Service) stopSession(ctx context.Context, sessionID, reason string) {
	if sessionID == "" {
		return
	}
	if s.tracker != nil {
		s.tracker.Stop(sessionID)
	}
	if s.controller == nil {
		return
	}

	if err := s.controller.Stop(ctx, sessionID); err != nil {
		metrics.SessionStops.WithLabelValues(reason, "error").Inc()
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to stop session")
		return
	}
	metrics.SessionStops.WithLabelValues(reason, "ok").Inc()
}

// fileRequest records a pending admin request unless the user already has one for the same
// reason.
func (s *Service) fileRequest(ctx context.Context, userID, reason string) {
	if s.requests == nil || userID == "" {
		return
	}

	existing, err := s.requests.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list requests")
		return
	}
	for _, req := range existing {
		if req.UserID == userID && req.Reason == reason && req.Pending() {
			return
		}
	}

	if _, err := s.requests.Add(ctx, userID, reason, s.clock.UtcNow()); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to file request")
		return
	}
	metrics.RequestsFiled.Inc()
}

// applyCooldown sets the trip cooldown carried by a denial. It only ever extends an active
// cooldown, so a longer admin lock survives a trip.
func applyCooldown(st *state.UserState, now time.Time, d Decision) {
	if d.Allow || d.CooldownMinutes == nil || *d.CooldownMinutes <= 0 {
		return
	}
	until := now.Add(time.Duration(*d.CooldownMinutes) * time.Minute)
	if st.CooldownActive(now) && !until.After(*st.CooldownUntil) {
		return
	}
	st.CooldownUntil = &until
}

// Status is the admin view of one user.
type Status struct {
	state.Summary
	Budget          usage.Stats     `json:"budget"`
	InAllowedWindow bool            `json:"in_allowed_window"`
	Sessions        []usage.Session `json:"sessions"`
}

// State returns the user's current state and budget position.
func (s *Service) State(ctx context.Context, userID string) Status {
	userID = policy.NormalizeUserID(userID)
	p := s.policies.GetEffectivePolicy(ctx, userID)
	localNow := s.clock.LocalNow()

	status := Status{
		Summary:         s.states.Snapshot(userID),
		InAllowedWindow: len(p.Schedules) == 0 || policy.InAllowedWindow(p, localNow),
		Sessions:        []usage.Session{},
	}
	status.Budget = usage.NewStats(s.budget.DailyBudget(p, localNow.Weekday()), status.MinutesConsumed)
	if s.tracker != nil {
		status.Sessions = s.tracker.ActiveForUser(userID)
	}
	return status
}

// Lock sets a cooldown for minutes and stops the user's active sessions.
func (s *Service) Lock(ctx context.Context, userID string, minutes int) (time.Time, error) {
	userID = policy.NormalizeUserID(userID)
	if minutes <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	until := s.clock.UtcNow().Add(time.Duration(minutes) * time.Minute)
	s.states.SetCooldown(userID, until)
	metrics.CooldownsSet.WithLabelValues("admin").Inc()

	if s.tracker != nil {
		for _, session := range s.tracker.ActiveForUser(userID) {
			s.stopSession(ctx, session.ID, "admin_lock")
		}
	}

	s.logger.Info().Str("user_id", userID).Time("until", until).Msg("User locked")
	return until, nil
}

// Unlock grants an unlock for minutes, capped by the user's policy, and clears any cooldown.
func (s *Service) Unlock(ctx context.Context, userID string, minutes int, reason string) (time.Time, error) {
	userID = policy.NormalizeUserID(userID)
	if minutes <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	p := s.policies.GetEffectivePolicy(ctx, userID)
	if p.UnlockMaxDurationMinutes > 0 && minutes > p.UnlockMaxDurationMinutes {
		minutes = p.UnlockMaxDurationMinutes
	}

	until := s.clock.UtcNow().Add(time.Duration(minutes) * time.Minute)
	s.grant(userID, until, reason)
	return until, nil
}

func (s *Service) grant(userID string, until time.Time, reason string) {
	s.states.SetUnlock(userID, until, reason)
	s.states.ClearCooldown(userID)
	s.logger.Info().Str("user_id", userID).Time("until", until).Str("reason", reason).Msg("User unlocked")
}

// RequestMoreTime files a pending request.
func (s *Service) RequestMoreTime(ctx context.Context, userID, reason string) (*storage.Request, error) {
	userID = policy.NormalizeUserID(userID)
	if s.requests == nil {
		return nil, fmt.Errorf("request store not configured")
	}
	req, err := s.requests.Add(ctx, userID, reason, s.clock.UtcNow())
	if err != nil {
		return nil, fmt.Errorf("failed to file request: %w", err)
	}
	metrics.RequestsFiled.Inc()
	return req, nil
}

// ListRequests returns all requests, oldest first.
func (s *Service) ListRequests(ctx context.Context) ([]storage.Request, error) {
	if s.requests == nil {
		return []storage.Request{}, nil
	}
	return s.requests.List(ctx)
}

// Approve resolves a pending request. With untilEndOfDay the user is unlocked until the next
// UTC midnight; with a duration, for that many minutes. Either way the cooldown is cleared.
// Unknown or already resolved ids return storage.ErrNotFound.
func (s *Service) Approve(ctx context.Context, id string, durationMinutes *int, untilEndOfDay bool) (*storage.Request, error) {
	if s.requests == nil {
		return nil, storage.ErrNotFound
	}
	now := s.clock.UtcNow()

	req, err := s.requests.Approve(ctx, id, durationMinutes, untilEndOfDay, now)
	if err != nil {
		return nil, err
	}

	switch {
	case untilEndOfDay:
		s.grant(req.UserID, EndOfDay(now), UnlockReasonApproved)
	case durationMinutes != nil && *durationMinutes > 0:
		s.grant(req.UserID, now.Add(time.Duration(*durationMinutes)*time.Minute), UnlockReasonApproved)
	}

	s.logger.Info().Str("request_id", id).Str("user_id", req.UserID).Msg("Request approved")
	return req, nil
}

// Deny resolves a pending request without granting anything.
func (s *Service) Deny(ctx context.Context, id string) (*storage.Request, error) {
	if s.requests == nil {
		return nil, storage.ErrNotFound
	}
	req, err := s.requests.Deny(ctx, id, s.clock.UtcNow())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("request_id", id).Str("user_id", req.UserID).Msg("Request denied")
	return req, nil
}

// ResetDaily runs the daily sweep immediately.
func (s *Service) ResetDaily() int {
	n := s.states.ResetDaily(s.clock.UtcNow())
	metrics.DailyResets.Inc()
	return n
}

// SimulateStart evaluates a start without a session.
func (s *Service) SimulateStart(ctx context.Context, userID string) Decision {
	return s.start(ctx, PlaybackEvent{UserID: userID}, false)
}

// SimulateSeek records a seek and applies the seek rate limit.
func (s *Service) SimulateSeek(ctx context.Context, userID string) Decision {
	return s.simulateRateLimited(ctx, userID, "seek", s.engine.EvaluateSeek)
}

// SimulateSwitch records a title switch and applies the switch rate limit.
func (s *Service) SimulateSwitch(ctx context.Context, userID string) Decision {
	return s.simulateRateLimited(ctx, userID, "switch", s.engine.EvaluateSwitch)
}

func (s *Service) simulateRateLimited(ctx context.Context, userID, kind string, eval func(string, policy.ProfilePolicy, *state.UserState, time.Time) Decision) Decision {
	started := time.Now()
	userID = policy.NormalizeUserID(userID)
	p := s.policies.GetEffectivePolicy(ctx, userID)

	out := outcome{event: kind, detected: kind}
	s.states.With(userID, func(st *state.UserState, now time.Time) {
		out.decision = eval(userID, p, st, now)
		applyCooldown(st, now, out.decision)
	})

	s.finish(ctx, PlaybackEvent{UserID: userID}, out, started)
	return out.decision
}

// SimulateProgress charges minutes directly to the user's day.
func (s *Service) SimulateProgress(ctx context.Context, userID string, minutes int) state.Summary {
	userID = policy.NormalizeUserID(userID)
	var out outcome
	s.states.With(userID, func(st *state.UserState, now time.Time) {
		s.budget.AddMinutes(st, minutes, now)
		out.minutes = minutes
		out.dayKey = st.DayKey
	})
	s.recordUsage(ctx, userID, out)
	return s.states.Snapshot(userID)
}

// EndOfDay returns the next UTC midnight after now.
func EndOfDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
