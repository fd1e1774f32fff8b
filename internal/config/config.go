// Package config handles loading and validating configuration from
// environment variables, with fallback to a local .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the coach engine.
type Config struct {
	// Deriv feed
	DerivWSURL    string
	DerivAppID    int
	DerivAPIToken string
	PingInterval  time.Duration

	// Collaborators
	CoachAPIURL  string // coaching-message endpoint (POST /api/coach/message)
	SyncAPIURL   string // event-sync endpoint (POST /api/trading)
	CoachTimeout time.Duration

	// Behavioral thresholds
	LossWarningThreshold decimal.Decimal // fraction of session-start capital
	LossAlertThreshold   decimal.Decimal
	RevengeWindow        time.Duration
	StopCountdown        time.Duration
	HarshMode            bool // no dismissing the forced pause

	// Persistence
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	// HTTP server
	Port string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env.
// Priority order: environment variables > .env file > defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DerivWSURL:    getEnv("DERIV_WS_URL", "wss://ws.derivws.com/websockets/v3"),
		DerivAppID:    getEnvInt("DERIV_APP_ID", 1089),
		DerivAPIToken: getEnv("DERIV_API_TOKEN", ""),
		PingInterval:  time.Duration(getEnvInt("PING_INTERVAL_SECONDS", 30)) * time.Second,

		CoachAPIURL:  getEnv("COACH_API_URL", "http://localhost:3000/api/coach/message"),
		SyncAPIURL:   getEnv("SYNC_API_URL", "http://localhost:3000/api/trading"),
		CoachTimeout: time.Duration(getEnvInt("COACH_TIMEOUT_SECONDS", 15)) * time.Second,

		LossWarningThreshold: getEnvDecimal("LOSS_WARNING_THRESHOLD", "0.05"),
		LossAlertThreshold:   getEnvDecimal("LOSS_ALERT_THRESHOLD", "0.10"),
		RevengeWindow:        time.Duration(getEnvInt("REVENGE_WINDOW_SECONDS", 180)) * time.Second,
		StopCountdown:        time.Duration(getEnvInt("STOP_COUNTDOWN_SECONDS", 5)) * time.Second,
		HarshMode:            getEnvBool("HARSH_MODE", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		CacheTTL:    time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,

		Port: getEnv("PORT", "8090"),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration values are set and sane.
func (c *Config) Validate() error {
	if c.DerivWSURL == "" {
		return fmt.Errorf("DERIV_WS_URL is required")
	}
	if c.DerivAPIToken == "" {
		return fmt.Errorf("DERIV_API_TOKEN is required")
	}
	if c.DerivAppID <= 0 {
		return fmt.Errorf("DERIV_APP_ID must be positive")
	}
	if c.LossWarningThreshold.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("LOSS_WARNING_THRESHOLD must be positive")
	}
	if c.LossAlertThreshold.LessThan(c.LossWarningThreshold) {
		return fmt.Errorf("LOSS_ALERT_THRESHOLD must be >= LOSS_WARNING_THRESHOLD")
	}
	if c.RevengeWindow <= 0 {
		return fmt.Errorf("REVENGE_WINDOW_SECONDS must be positive")
	}
	if c.StopCountdown <= 0 {
		return fmt.Errorf("STOP_COUNTDOWN_SECONDS must be positive")
	}
	return nil
}

// MaskedToken returns the API token with most characters hidden for logging.
func (c *Config) MaskedToken() string {
	return maskSecret(c.DerivAPIToken)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDecimal retrieves an environment variable as a decimal or returns the default.
func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
