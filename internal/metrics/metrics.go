package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Decision metrics
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parentguard_decisions_total",
			Help: "Total enforcement decisions by event kind and outcome",
		},
		[]string{"event", "outcome", "reason"},
	)

	DecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parentguard_decision_duration_seconds",
			Help:    "Time spent evaluating a playback event",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"event"},
	)

	// Detector metrics
	SeeksDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parentguard_seeks_detected_total",
			Help: "Seeks inferred from progress samples",
		},
		[]string{"user"},
	)

	SwitchesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parentguard_switches_detected_total",
			Help: "Title switches detected at playback start",
		},
		[]string{"user"},
	)

	// Usage metrics
	UsageMinutesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parentguard_usage_minutes_consumed_total",
			Help: "Total watch minutes charged to daily budgets",
		},
		[]string{"user"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parentguard_active_sessions",
			Help: "Number of playback sessions currently tracked",
		},
	)

	TrackedUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parentguard_tracked_users",
			Help: "Number of users with runtime state",
		},
	)

	// Side-effect metrics
	SessionStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parentguard_session_stops_total",
			Help: "Session stop commands sent to the player",
		},
		[]string{"reason", "result"},
	)

	CooldownsSet = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parentguard_cooldowns_total",
			Help: "Cooldowns applied by source",
		},
		[]string{"source"},
	)

	RequestsFiled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parentguard_requests_filed_total",
			Help: "Admin requests filed",
		},
	)

	DailyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parentguard_daily_resets_total",
			Help: "Daily state resets performed",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		DecisionsTotal,
		DecisionDuration,
		SeeksDetected,
		SwitchesDetected,
		UsageMinutesConsumed,
		ActiveSessions,
		TrackedUsers,
		SessionStops,
		CooldownsSet,
		RequestsFiled,
		DailyResets,
	)
}

// Server exposes /metrics and a liveness check.
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener
}

// NewServer creates a metrics server bound to addr.
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the metrics mux.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener uses a socket-activated listener instead of binding Addr.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start serves in the background.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Bool("socket_activated", s.listener != nil).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Shutdown stops accepting scrapes and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
