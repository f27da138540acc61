package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	Usage       UsageConfig       `mapstructure:"usage_tracking"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Player      PlayerConfig      `mapstructure:"player"`
}

// ServerConfig defines listen addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	AdminPort   int    `mapstructure:"admin_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "memory", "redis" or "bolt"
	Path  string      `mapstructure:"path"` // bolt database file
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig defines where profile policies come from
type PolicyConfig struct {
	Source       string                          `mapstructure:"source"` // "config", "store" or "opa"
	OPAPolicyDir string                          `mapstructure:"opa_policy_dir"`
	CacheSize    int                             `mapstructure:"cache_size"`
	CacheTTL     string                          `mapstructure:"cache_ttl"`
	Default      *policy.ProfilePolicy           `mapstructure:"default"`
	Profiles     map[string]policy.ProfilePolicy `mapstructure:"profiles"` // keyed by user id
}

// EnforcementConfig tunes the enforcement service
type EnforcementConfig struct {
	SeekTolerance         string `mapstructure:"seek_tolerance"`
	EnforceDuringPlayback bool   `mapstructure:"enforce_during_playback"`
	FileRequestsOnBlock   bool   `mapstructure:"file_requests_on_block"`
}

// UsageConfig defines usage tracking settings
type UsageConfig struct {
	DailyResetTime    string `mapstructure:"daily_reset_time"`
	Timezone          string `mapstructure:"timezone"`
	InactivityTimeout string `mapstructure:"inactivity_timeout"`
}

// AdminConfig defines admin API settings
type AdminConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenExpiration string `mapstructure:"token_expiration"`
}

// PlayerConfig defines how playback sessions are stopped on the media host
type PlayerConfig struct {
	Type    string `mapstructure:"type"` // "nop" or "http"
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PARENTGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.admin_port", 8097)
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.path", "/var/lib/parentguard/parentguard.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Policy defaults
	v.SetDefault("policy.source", "config")
	v.SetDefault("policy.opa_policy_dir", "/etc/parentguard/policies")
	v.SetDefault("policy.cache_size", 256)
	v.SetDefault("policy.cache_ttl", "1m")

	// Enforcement defaults
	v.SetDefault("enforcement.seek_tolerance", "5s")
	v.SetDefault("enforcement.enforce_during_playback", true)
	v.SetDefault("enforcement.file_requests_on_block", true)

	// Usage tracking defaults
	v.SetDefault("usage_tracking.daily_reset_time", "00:00")
	v.SetDefault("usage_tracking.timezone", "Local")
	v.SetDefault("usage_tracking.inactivity_timeout", "5m")

	// Admin defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.token_expiration", "24h")

	// Player defaults
	v.SetDefault("player.type", "nop")
	v.SetDefault("player.timeout", "5s")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.AdminPort <= 0 || cfg.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", cfg.Server.AdminPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "memory"
	case "memory", "redis":
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
		// Ensure storage directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (must be memory, redis, or bolt)", cfg.Storage.Type)
	}

	switch cfg.Policy.Source {
	case "":
		cfg.Policy.Source = "config"
	case "config", "store":
	case "opa":
		if cfg.Policy.OPAPolicyDir == "" {
			return fmt.Errorf("policy.opa_policy_dir is required when policy.source is opa")
		}
	default:
		return fmt.Errorf("unsupported policy source: %s (must be config, store, or opa)", cfg.Policy.Source)
	}

	if cfg.Policy.Default != nil {
		if err := cfg.Policy.Default.Validate(); err != nil {
			return fmt.Errorf("policy.default: %w", err)
		}
	}
	for userID, p := range cfg.Policy.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy.profiles.%s: %w", userID, err)
		}
	}

	if _, err := time.Parse("15:04", cfg.Usage.DailyResetTime); err != nil {
		return fmt.Errorf("invalid usage_tracking.daily_reset_time %q (expected HH:MM)", cfg.Usage.DailyResetTime)
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}

	for name, value := range map[string]string{
		"enforcement.seek_tolerance":        cfg.Enforcement.SeekTolerance,
		"usage_tracking.inactivity_timeout": cfg.Usage.InactivityTimeout,
		"policy.cache_ttl":                  cfg.Policy.CacheTTL,
		"admin.token_expiration":            cfg.Admin.TokenExpiration,
		"player.timeout":                    cfg.Player.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if cfg.Admin.Enabled && cfg.Admin.JWTSecret == "" && !isLoopback(cfg.Server.BindAddress) {
		return fmt.Errorf("admin.jwt_secret is required when the admin API listens on %s (bind to 127.0.0.1 or set a secret)", cfg.Server.BindAddress)
	}

	switch cfg.Player.Type {
	case "", "nop":
	case "http":
		if cfg.Player.BaseURL == "" {
			return fmt.Errorf("player.base_url is required when player.type is http")
		}
	default:
		return fmt.Errorf("unsupported player type: %s (must be nop or http)", cfg.Player.Type)
	}

	return nil
}

// isLoopback reports whether addr only accepts connections from this host.
func isLoopback(addr string) bool {
	if strings.EqualFold(addr, "localhost") {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

// Location resolves the configured timezone used for local time.
func (c *Config) Location() (*time.Location, error) {
	switch c.Usage.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Usage.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid usage_tracking.timezone %q: %w", c.Usage.Timezone, err)
	}
	return loc, nil
}

// DefaultPolicy returns the configured fallback policy or the built-in default.
func (c *Config) DefaultPolicy() policy.ProfilePolicy {
	if c.Policy.Default != nil {
		return *c.Policy.Default
	}
	return policy.DefaultPolicy()
}
