package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/parentguard/internal/admin"
	"github.com/goodtune/parentguard/internal/config"
	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/goodtune/parentguard/internal/metrics"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/state"
	"github.com/goodtune/parentguard/internal/systemd"
	"github.com/goodtune/parentguard/internal/usage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start ParentGuard server",
	Long:  `Start the enforcement service with the admin API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting ParentGuard")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	// Policies
	policies, policyReloader, err := buildPolicyProvider(cfg, store, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("source", cfg.Policy.Source).Int("profiles", len(cfg.Policy.Profiles)).Msg("Policy provider initialized")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := policy.RealClock{Location: loc}

	// Runtime state and sessions
	states := state.NewStore(clock, logger)
	tracker := usage.NewTracker(clock, usage.Config{
		InactivityTimeout: parseDuration(cfg.Usage.InactivityTimeout, usage.DefaultInactivityTimeout),
	}, logger)
	go tracker.Run(ctx)

	controller, err := buildController(cfg.Player, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize player controller: %w", err)
	}

	service := enforce.NewService(enforce.Deps{
		Policies:   policies,
		Clock:      clock,
		States:     states,
		Tracker:    tracker,
		Controller: controller,
		Requests:   store.Requests(),
		History:    store.Usage(),
	}, enforce.Config{
		SeekTolerance:         parseDuration(cfg.Enforcement.SeekTolerance, enforce.DefaultSeekTolerance),
		EnforceDuringPlayback: cfg.Enforcement.EnforceDuringPlayback,
		FileRequestsOnBlock:   cfg.Enforcement.FileRequestsOnBlock,
	}, logger)

	resetScheduler, err := usage.NewResetScheduler(states, clock, cfg.Usage.DailyResetTime, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Reset Scheduler: %w", err)
	}
	resetScheduler.Start(ctx)
	logger.Info().Str("at", cfg.Usage.DailyResetTime).Str("timezone", loc.String()).Msg("Reset Scheduler initialized")

	// Admin API
	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.NewServer(admin.Config{
			ListenAddr:      fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.AdminPort),
			JWTSecret:       cfg.Admin.JWTSecret,
			TokenExpiration: parseDuration(cfg.Admin.TokenExpiration, admin.DefaultTokenExpiration),
		}, admin.Deps{
			Service:  service,
			Policies: policies,
			Usage:    store.Usage(),
			Reloader: policyReloader,
		}, logger)

		if sdListeners.Admin != nil {
			adminServer.SetListener(sdListeners.Admin)
		}
		if err := adminServer.Start(); err != nil {
			return fmt.Errorf("failed to start Admin Server: %w", err)
		}
	}

	// Metrics
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().
		Str("admin", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.AdminPort)).
		Bool("admin_enabled", cfg.Admin.Enabled).
		Str("metrics", metricsAddr).
		Msg("ParentGuard startup complete")

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	go systemd.RunWatchdog(ctx, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		if policyReloader == nil {
			logger.Warn().Str("source", cfg.Policy.Source).Msg("SIGHUP ignored, policy source does not support reload")
			continue
		}
		_ = systemd.NotifyReloading()
		if err := policyReloader.Reload(); err != nil {
			logger.Error().Err(err).Msg("Failed to reload policies")
		} else {
			logger.Info().Msg("Policies reloaded successfully")
		}
		_ = systemd.NotifyReady()
	}

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	resetScheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error stopping Admin Server")
		}
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("ParentGuard stopped")
	return nil
}
