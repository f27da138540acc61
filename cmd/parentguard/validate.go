package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/parentguard/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the ParentGuard configuration file, including every configured profile policy.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)
	_, _ = fmt.Fprintf(os.Stdout, "   %d profile(s) configured, policy source %q\n", len(cfg.Policy.Profiles), cfg.Policy.Source)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, getDefaultConfig(), unknownKeys)
	}

	return nil
}

// getDefaultConfig creates a configuration holding only default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if validKeys[key] || isPolicyKey(key) {
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)

	return unknown, nil
}

// policyFields are the keys accepted inside policy.default and each policy.profiles entry.
var policyFields = map[string]bool{
	"enabled":                          true,
	"daily_budget_minutes":             true,
	"seek_rate_limit.max_events":       true,
	"seek_rate_limit.window_minutes":   true,
	"switch_rate_limit.max_events":     true,
	"switch_rate_limit.window_minutes": true,
	"cooldown_on_trip_minutes":         true,
	"unlock_max_duration_minutes":      true,
	"pin_overrides_allowed":            true,
	"pin_required_for_extra_time":      true,
	"blocked_collections":              true,
	"notes":                            true,
}

// isPolicyField accepts fixed policy fields and entries of its day-keyed maps.
func isPolicyField(field string) bool {
	return policyFields[field] ||
		strings.HasPrefix(field, "budgets_by_weekday.") ||
		strings.HasPrefix(field, "schedules.")
}

// isPolicyKey reports whether key names a field of the default or a per-user policy.
func isPolicyKey(key string) bool {
	if rest, ok := strings.CutPrefix(key, "policy.default."); ok {
		return isPolicyField(rest)
	}
	rest, ok := strings.CutPrefix(key, "policy.profiles.")
	if !ok {
		return false
	}
	// Skip the user id segment.
	_, field, ok := strings.Cut(rest, ".")
	return ok && isPolicyField(field)
}

// getValidKeys returns a set of all valid scalar configuration keys
func getValidKeys() map[string]bool {
	return map[string]bool{
		// Server
		"server.bind_address": true,
		"server.admin_port":   true,
		"server.metrics_port": true,

		// Storage
		"storage.type":                 true,
		"storage.path":                 true,
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,

		// Logging
		"logging.level":  true,
		"logging.format": true,

		// Policy
		"policy.source":         true,
		"policy.opa_policy_dir": true,
		"policy.cache_size":     true,
		"policy.cache_ttl":      true,

		// Enforcement
		"enforcement.seek_tolerance":          true,
		"enforcement.enforce_during_playback": true,
		"enforcement.file_requests_on_block":  true,

		// Usage tracking
		"usage_tracking.daily_reset_time":   true,
		"usage_tracking.timezone":           true,
		"usage_tracking.inactivity_timeout": true,

		// Admin
		"admin.enabled":          true,
		"admin.jwt_secret":       true,
		"admin.token_expiration": true,

		// Player
		"player.type":     true,
		"player.base_url": true,
		"player.api_key":  true,
		"player.timeout":  true,
	}
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[server]")
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  admin_port", cfg.Server.AdminPort, defaultCfg.Server.AdminPort, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)

	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactSecret(cfg.Storage.Redis.Password), redactSecret(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	_, _ = cyan.Println("\n[policy]")
	dumpField("  source", cfg.Policy.Source, defaultCfg.Policy.Source, yellow, green)
	dumpField("  opa_policy_dir", cfg.Policy.OPAPolicyDir, defaultCfg.Policy.OPAPolicyDir, yellow, green)
	dumpField("  cache_size", cfg.Policy.CacheSize, defaultCfg.Policy.CacheSize, yellow, green)
	dumpField("  cache_ttl", cfg.Policy.CacheTTL, defaultCfg.Policy.CacheTTL, yellow, green)
	dumpField("  default", cfg.DefaultPolicy(), defaultCfg.DefaultPolicy(), yellow, green)

	users := make([]string, 0, len(cfg.Policy.Profiles))
	for userID := range cfg.Policy.Profiles {
		users = append(users, userID)
	}
	sort.Strings(users)
	for _, userID := range users {
		_, _ = yellow.Printf("  profiles.%s = %+v\n", userID, cfg.Policy.Profiles[userID])
	}

	_, _ = cyan.Println("\n[enforcement]")
	dumpField("  seek_tolerance", cfg.Enforcement.SeekTolerance, defaultCfg.Enforcement.SeekTolerance, yellow, green)
	dumpField("  enforce_during_playback", cfg.Enforcement.EnforceDuringPlayback, defaultCfg.Enforcement.EnforceDuringPlayback, yellow, green)
	dumpField("  file_requests_on_block", cfg.Enforcement.FileRequestsOnBlock, defaultCfg.Enforcement.FileRequestsOnBlock, yellow, green)

	_, _ = cyan.Println("\n[usage_tracking]")
	dumpField("  daily_reset_time", cfg.Usage.DailyResetTime, defaultCfg.Usage.DailyResetTime, yellow, green)
	dumpField("  timezone", cfg.Usage.Timezone, defaultCfg.Usage.Timezone, yellow, green)
	dumpField("  inactivity_timeout", cfg.Usage.InactivityTimeout, defaultCfg.Usage.InactivityTimeout, yellow, green)

	_, _ = cyan.Println("\n[admin]")
	dumpField("  enabled", cfg.Admin.Enabled, defaultCfg.Admin.Enabled, yellow, green)
	dumpField("  jwt_secret", redactSecret(cfg.Admin.JWTSecret), redactSecret(defaultCfg.Admin.JWTSecret), yellow, green)
	dumpField("  token_expiration", cfg.Admin.TokenExpiration, defaultCfg.Admin.TokenExpiration, yellow, green)

	_, _ = cyan.Println("\n[player]")
	dumpField("  type", cfg.Player.Type, defaultCfg.Player.Type, yellow, green)
	dumpField("  base_url", cfg.Player.BaseURL, defaultCfg.Player.BaseURL, yellow, green)
	dumpField("  api_key", redactSecret(cfg.Player.APIKey), redactSecret(defaultCfg.Player.APIKey), yellow, green)
	dumpField("  timeout", cfg.Player.Timeout, defaultCfg.Player.Timeout, yellow, green)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	valueStr := fmt.Sprintf("%v", value)

	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactSecret hides a password, API key or signing secret if set
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}
