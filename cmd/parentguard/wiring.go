package main

import (
	"fmt"
	"time"

	"github.com/goodtune/parentguard/internal/config"
	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/goodtune/parentguard/internal/player"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/policy/opa"
	"github.com/goodtune/parentguard/internal/storage"
	"github.com/goodtune/parentguard/internal/storage/bolt"
	"github.com/goodtune/parentguard/internal/storage/memory"
	"github.com/goodtune/parentguard/internal/storage/redis"
	"github.com/rs/zerolog"
)

// reloader is implemented by policy sources that can be re-read at runtime.
type reloader interface {
	Reload() error
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		return redis.Open(cfg.Redis)
	case "bolt":
		return bolt.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// buildPolicyProvider returns the provider for policy.source and, when the source supports it,
// the same provider as a reloader.
func buildPolicyProvider(cfg *config.Config, store storage.Store, logger zerolog.Logger) (policy.Provider, reloader, error) {
	fallback := cfg.DefaultPolicy()

	switch cfg.Policy.Source {
	case "", "config":
		return policy.NewStaticProvider(cfg.Policy.Profiles, fallback), nil, nil
	case "store":
		provider := policy.NewStoreProvider(store.Policies(), fallback, policy.StoreProviderConfig{
			CacheSize: cfg.Policy.CacheSize,
			CacheTTL:  parseDuration(cfg.Policy.CacheTTL, time.Minute),
		}, logger)
		return provider, provider, nil
	case "opa":
		provider, err := opa.NewProvider(opa.Config{PolicyDir: cfg.Policy.OPAPolicyDir}, fallback, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load OPA policies: %w", err)
		}
		return provider, provider, nil
	default:
		return nil, nil, fmt.Errorf("unsupported policy source: %s", cfg.Policy.Source)
	}
}

func buildController(cfg config.PlayerConfig, logger zerolog.Logger) (enforce.SessionController, error) {
	switch cfg.Type {
	case "", "nop":
		return player.NewNopController(logger), nil
	case "http":
		ctrl, err := player.NewHTTPController(player.HTTPConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: parseDuration(cfg.Timeout, 5*time.Second),
		}, logger)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	default:
		return nil, fmt.Errorf("unsupported player type: %s", cfg.Type)
	}
}
