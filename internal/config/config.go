// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database. Optional: in-memory history and audit stores are used
	// when unset.
	DatabaseURL string

	// Observability
	OTLPEndpoint string

	// Engine settings
	EvaluationTimeout time.Duration

	// Policy overrides. Rule thresholds and weights are static
	// configuration compiled into fraud.DefaultPolicy; only the coarse
	// monetary knobs are tunable per deployment.
	HighValueThreshold decimal.Decimal
	DailyCap           decimal.Decimal

	// Audit dispatcher
	AuditQueueSize    int
	AuditMaxAttempts  int
	AuditRetryBackoff time.Duration

	// Rate limiting for the evaluation API. RateLimitRPM 0 disables it.
	RateLimitRPM   int
	RateLimitBurst int
}

// Defaults.
const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultEvaluationTimeout = 500 * time.Millisecond
	DefaultAuditQueueSize    = 1024
	DefaultAuditMaxAttempts  = 3
	DefaultAuditRetryBackoff = 250 * time.Millisecond
	DefaultRateLimitRPM      = 600
	DefaultRateLimitBurst    = 100
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EvaluationTimeout: DefaultEvaluationTimeout,
		AuditQueueSize:    DefaultAuditQueueSize,
		AuditMaxAttempts:  DefaultAuditMaxAttempts,
		AuditRetryBackoff: DefaultAuditRetryBackoff,
		RateLimitRPM:      DefaultRateLimitRPM,
		RateLimitBurst:    DefaultRateLimitBurst,
	}

	if v := os.Getenv("EVALUATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVALUATION_TIMEOUT %q: %w", v, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("EVALUATION_TIMEOUT must be positive, got %q", v)
		}
		cfg.EvaluationTimeout = d
	}

	var err error
	if cfg.HighValueThreshold, err = decimalEnv("HIGH_VALUE_THRESHOLD"); err != nil {
		return nil, err
	}
	if cfg.DailyCap, err = decimalEnv("DAILY_CAP"); err != nil {
		return nil, err
	}

	if v := os.Getenv("AUDIT_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid AUDIT_QUEUE_SIZE %q", v)
		}
		cfg.AuditQueueSize = n
	}

	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPM %q", v)
		}
		cfg.RateLimitRPM = n
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateLimitBurst = n
	}

	return cfg, nil
}

// IsProduction returns true when running in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// decimalEnv parses an optional decimal env var; zero value means unset.
func decimalEnv(key string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return decimal.Decimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative, got %q", key, v)
	}
	return d, nil
}

// getEnv returns the env var value or a default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
