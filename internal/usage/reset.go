package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goodtune/parentguard/internal/metrics"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/rs/zerolog"
)

// Resetter is the state sweep run by the scheduler.
type Resetter interface {
	ResetDaily(now time.Time) int
}

// ResetScheduler runs the daily state reset at a fixed local time of day.
type ResetScheduler struct {
	resetter  Resetter
	clock     policy.Clock
	resetTime time.Time // Time of day to reset (only hour and minute are used)
	logger    zerolog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(resetter Resetter, clock policy.Clock, resetTime string, logger zerolog.Logger) (*ResetScheduler, error) {
	// Parse reset time (HH:MM format)
	parsedTime, err := time.Parse("15:04", resetTime)
	if err != nil {
		return nil, err
	}

	return &ResetScheduler{
		resetter:  resetter,
		clock:     clock,
		resetTime: parsedTime,
		logger:    logger.With().Str("component", "reset-scheduler").Logger(),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins the reset loop. It ends when ctx is cancelled or Stop is called.
func (rs *ResetScheduler) Start(ctx context.Context) {
	if !rs.started.CompareAndSwap(false, true) {
		return
	}
	go rs.run(ctx)
	rs.logger.Info().
		Str("reset_time", rs.resetTime.Format("15:04")).
		Msg("Daily reset scheduler started")
}

// Stop ends the loop and waits for it to exit. A wait in progress is abandoned without
// resetting anything.
func (rs *ResetScheduler) Stop() {
	rs.stopOnce.Do(func() { close(rs.stopChan) })
	if !rs.started.Load() {
		return
	}
	<-rs.done
	rs.logger.Info().Msg("Daily reset scheduler stopped")
}

func (rs *ResetScheduler) run(ctx context.Context) {
	defer close(rs.done)

	for {
		now := rs.clock.LocalNow()
		nextReset := rs.calculateNextReset(now)
		waitDuration := nextReset.Sub(now)

		rs.logger.Info().
			Time("next_reset", nextReset).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next daily reset")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			rs.performReset()
		case <-ctx.Done():
			timer.Stop()
			return
		case <-rs.stopChan:
			timer.Stop()
			return
		}
	}
}

// calculateNextReset returns the next reset instant strictly after now.
func (rs *ResetScheduler) calculateNextReset(now time.Time) time.Time {
	todayReset := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.resetTime.Hour(), rs.resetTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already reached today's reset time, schedule for tomorrow
	if !now.Before(todayReset) {
		return todayReset.AddDate(0, 0, 1)
	}

	return todayReset
}

func (rs *ResetScheduler) performReset() {
	rs.logger.Info().Msg("Performing daily reset")

	users := rs.resetter.ResetDaily(rs.clock.UtcNow())
	metrics.DailyResets.Inc()

	rs.logger.Info().Int("users", users).Msg("Daily reset complete")
}
