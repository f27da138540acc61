// Package admin serves the JSON admin API.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/parentguard/internal/admin/api"
	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the admin server configuration.
type Config struct {
	ListenAddr      string
	JWTSecret       string
	TokenExpiration time.Duration
}

// Deps are the services the handlers call into. Usage and Reloader may be nil.
type Deps struct {
	Service  *enforce.Service
	Policies policy.Provider
	Usage    storage.UsageStore
	Reloader api.Reloader
}

// Server represents the admin HTTP server.
type Server struct {
	config   Config
	server   *http.Server
	router   *mux.Router
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates a new admin server. Without a JWT secret the API is unauthenticated.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		router: mux.NewRouter(),
		logger: logger.With().Str("component", "admin").Logger(),
	}

	s.setupRoutes(deps)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(LoggingMiddleware(s.logger))

	system := api.NewSystemHandler(deps.Service, deps.Reloader, s.logger)
	s.router.HandleFunc("/health", system.GetHealth).Methods("GET")

	authRouter := s.router.PathPrefix("/api").Subrouter()
	if s.config.JWTSecret != "" {
		authRouter.Use(AuthMiddleware(NewTokenIssuer(s.config.JWTSecret, s.config.TokenExpiration)))
	} else {
		s.logger.Warn().Msg("admin.jwt_secret is empty, admin API is unauthenticated")
	}

	stateHandler := api.NewStateHandler(deps.Service, s.logger)
	authRouter.HandleFunc("/state/{userID}", stateHandler.Get).Methods("GET")
	authRouter.HandleFunc("/profiles/{userID}/unlock", stateHandler.Unlock).Methods("POST")
	authRouter.HandleFunc("/profiles/{userID}/lock", stateHandler.Lock).Methods("POST")

	requestsHandler := api.NewRequestsHandler(deps.Service, s.logger)
	authRouter.HandleFunc("/requests", requestsHandler.List).Methods("GET")
	authRouter.HandleFunc("/requests", requestsHandler.Create).Methods("POST")
	authRouter.HandleFunc("/requests/{id}/approve", requestsHandler.Approve).Methods("POST")
	authRouter.HandleFunc("/requests/{id}/deny", requestsHandler.Deny).Methods("POST")

	policyHandler := api.NewPolicyHandler(deps.Policies, s.logger)
	authRouter.HandleFunc("/policy", policyHandler.List).Methods("GET")
	authRouter.HandleFunc("/policy/seed", policyHandler.Seed).Methods("POST")
	authRouter.HandleFunc("/policy/reload", system.ReloadPolicy).Methods("POST")
	authRouter.HandleFunc("/policy/{userID}", policyHandler.Get).Methods("GET")
	authRouter.HandleFunc("/policy/{userID}", policyHandler.Put).Methods("PUT")

	usageHandler := api.NewUsageHandler(deps.Usage, s.logger)
	authRouter.HandleFunc("/usage/{date}", usageHandler.GetDailyUsage).Methods("GET")

	playbackHandler := api.NewPlaybackHandler(deps.Service, s.logger)
	authRouter.HandleFunc("/playback/start", playbackHandler.Start).Methods("POST")
	authRouter.HandleFunc("/playback/progress", playbackHandler.Progress).Methods("POST")
	authRouter.HandleFunc("/playback/stop", playbackHandler.Stop).Methods("POST")

	simHandler := api.NewSimHandler(deps.Service, s.logger)
	authRouter.HandleFunc("/sim/start/{userID}", simHandler.Start).Methods("POST")
	authRouter.HandleFunc("/sim/seek/{userID}", simHandler.Seek).Methods("POST")
	authRouter.HandleFunc("/sim/switch/{userID}", simHandler.Switch).Methods("POST")
	authRouter.HandleFunc("/sim/progress/{userID}/{minutes}", simHandler.Progress).Methods("POST")

	authRouter.HandleFunc("/reset", system.Reset).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, "No route for "+r.URL.Path)
	})
}

// SetListener uses a socket-activated listener instead of binding ListenAddr.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start serves in the background.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.config.ListenAddr).
		Bool("auth", s.config.JWTSecret != "").
		Bool("socket_activated", s.listener != nil).
		Msg("Starting admin server")

	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Admin server error")
		}
	}()

	return nil
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Stopping admin server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}
