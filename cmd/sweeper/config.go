package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
	Serve      ServeConfig      `mapstructure:"serve"`

	// Manifest is an optional multi-project manifest path. When set, the
	// per-project cloudflare settings below only provide the API token.
	Manifest string `mapstructure:"manifest"`
}

// CloudflareConfig holds Pages API access configuration.
type CloudflareConfig struct {
	APIToken  string `mapstructure:"api_token"`
	AccountID string `mapstructure:"account_id"`
	Project   string `mapstructure:"project"`
	BaseURL   string `mapstructure:"base_url"` // override for tests, empty for the public API
}

// SweepConfig holds deletion loop tuning.
type SweepConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	DeletePause time.Duration `mapstructure:"delete_pause"`
	SweepPause  time.Duration `mapstructure:"sweep_pause"`
	DryRun      bool          `mapstructure:"dry_run"`
}

// RetryConfig holds HTTP retry configuration.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds audit store configuration.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServeConfig holds daemon mode configuration.
type ServeConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Schedule        string        `mapstructure:"schedule"` // standard 5-field cron
	RunOnStart      bool          `mapstructure:"run_on_start"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the admin server address in host:port format.
func (c ServeConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("cloudflare.api_token", "")
	v.SetDefault("cloudflare.account_id", "")
	v.SetDefault("cloudflare.project", "")
	v.SetDefault("cloudflare.base_url", "")
	v.SetDefault("sweep.batch_size", 24)
	v.SetDefault("sweep.delete_pause", "150ms")
	v.SetDefault("sweep.sweep_pause", "500ms")
	v.SetDefault("sweep.dry_run", false)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.backoff_base", "750ms")
	v.SetDefault("retry.timeout", "30s")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.dsn", "./data/sweeper.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text") // line-per-event narration for CI logs
	v.SetDefault("serve.host", "0.0.0.0")
	v.SetDefault("serve.port", 8900)
	v.SetDefault("serve.schedule", "0 3 * * *")
	v.SetDefault("serve.run_on_start", false)
	v.SetDefault("serve.shutdown_timeout", "10s")
	v.SetDefault("manifest", "")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SWEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The canonical origin variable names work alongside the SWEEPER_ ones,
	// so existing CI setups carry over unchanged.
	v.BindEnv("cloudflare.api_token", "SWEEPER_CLOUDFLARE_API_TOKEN", "CF_API_TOKEN")
	v.BindEnv("cloudflare.account_id", "SWEEPER_CLOUDFLARE_ACCOUNT_ID", "CF_ACCOUNT_ID")
	v.BindEnv("cloudflare.project", "SWEEPER_CLOUDFLARE_PROJECT", "CF_PAGES_PROJECT")

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// isPlaceholder reports whether a setting is unset or still carries the
// "YOUR-..." placeholder that documentation and public repos use.
func isPlaceholder(value string) bool {
	return value == "" || strings.HasPrefix(value, "YOUR-")
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
