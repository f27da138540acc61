package main

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/parentguard/internal/config"
	"github.com/goodtune/parentguard/internal/policy"
	"github.com/goodtune/parentguard/internal/storage/memory"
	"github.com/rs/zerolog"
)

func TestParseCheckTime(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 6, 5, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		day     string
		clock   string
		want    time.Time
		wantErr bool
	}{
		{"defaults to now", "", "", time.Date(2024, 6, 5, 10, 30, 0, 0, time.UTC), false},
		{"time only", "", "18:45", time.Date(2024, 6, 5, 18, 45, 0, 0, time.UTC), false},
		{"later this week", "saturday", "09:00", time.Date(2024, 6, 8, 9, 0, 0, 0, time.UTC), false},
		{"wraps to next week", "Mon", "", time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC), false},
		{"same day", "wed", "07:00", time.Date(2024, 6, 5, 7, 0, 0, 0, time.UTC), false},
		{"bad day", "funday", "", time.Time{}, true},
		{"bad time", "", "7pm", time.Time{}, true},
		{"out of range", "", "24:10", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCheckTime(now, tt.day, tt.clock)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPolicyKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"policy.default.daily_budget_minutes", true},
		{"policy.default.budgets_by_weekday.sat", true},
		{"policy.profiles.kid1.seek_rate_limit.max_events", true},
		{"policy.profiles.kid1.schedules.mon-fri", true},
		{"policy.profiles.kid1.daily_budget", false},
		{"policy.profiles.kid1", false},
		{"policy.cache_size", false},
	}

	for _, tt := range tests {
		if got := isPolicyKey(tt.key); got != tt.want {
			t.Errorf("isPolicyKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestBuildPolicyProvider(t *testing.T) {
	profile := policy.DefaultPolicy()
	profile.DailyBudgetMinutes = 42

	cfg := &config.Config{}
	cfg.Policy.Profiles = map[string]policy.ProfilePolicy{"kid1": profile}

	store := memory.New()
	logger := zerolog.Nop()

	cfg.Policy.Source = "config"
	provider, reload, err := buildPolicyProvider(cfg, store, logger)
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	if reload != nil {
		t.Error("config source should not be reloadable")
	}
	if got := provider.GetEffectivePolicy(context.Background(), "kid1").DailyBudgetMinutes; got != 42 {
		t.Errorf("kid1 budget = %d, want 42", got)
	}

	cfg.Policy.Source = "store"
	provider, reload, err = buildPolicyProvider(cfg, store, logger)
	if err != nil {
		t.Fatalf("store source: %v", err)
	}
	if reload == nil {
		t.Error("store source should be reloadable")
	}
	if got := provider.GetEffectivePolicy(context.Background(), "kid1").DailyBudgetMinutes; got != 90 {
		t.Errorf("unknown user in empty store budget = %d, want default 90", got)
	}

	cfg.Policy.Source = "ldap"
	if _, _, err := buildPolicyProvider(cfg, store, logger); err == nil {
		t.Error("expected error for unsupported source")
	}
}

func TestBuildController(t *testing.T) {
	logger := zerolog.Nop()

	if _, err := buildController(config.PlayerConfig{Type: "nop"}, logger); err != nil {
		t.Errorf("nop: %v", err)
	}
	if _, err := buildController(config.PlayerConfig{Type: "http", BaseURL: "http://media.local:8096"}, logger); err != nil {
		t.Errorf("http: %v", err)
	}
	if _, err := buildController(config.PlayerConfig{Type: "http", BaseURL: "not a url"}, logger); err == nil {
		t.Error("expected error for bad base url")
	}
	if _, err := buildController(config.PlayerConfig{Type: "carrier-pigeon"}, logger); err == nil {
		t.Error("expected error for unknown type")
	}
}
