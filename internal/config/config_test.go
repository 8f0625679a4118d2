package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultEvaluationTimeout, cfg.EvaluationTimeout)
	assert.Equal(t, DefaultAuditQueueSize, cfg.AuditQueueSize)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
	assert.True(t, cfg.HighValueThreshold.IsZero(), "threshold override should default to unset")
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/riskengine")
	t.Setenv("EVALUATION_TIMEOUT", "250ms")
	t.Setenv("HIGH_VALUE_THRESHOLD", "5000")
	t.Setenv("DAILY_CAP", "12000.50")
	t.Setenv("AUDIT_QUEUE_SIZE", "64")
	t.Setenv("RATE_LIMIT_RPM", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://localhost/riskengine", cfg.DatabaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.EvaluationTimeout)
	assert.True(t, cfg.HighValueThreshold.Equal(decimal.NewFromInt(5000)))
	assert.True(t, cfg.DailyCap.Equal(decimal.RequireFromString("12000.50")))
	assert.Equal(t, 64, cfg.AuditQueueSize)
	assert.Equal(t, 0, cfg.RateLimitRPM, "0 disables rate limiting")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed timeout", "EVALUATION_TIMEOUT", "soon"},
		{"negative timeout", "EVALUATION_TIMEOUT", "-1s"},
		{"malformed threshold", "HIGH_VALUE_THRESHOLD", "lots"},
		{"negative threshold", "HIGH_VALUE_THRESHOLD", "-100"},
		{"malformed cap", "DAILY_CAP", "infinity"},
		{"zero queue size", "AUDIT_QUEUE_SIZE", "0"},
		{"malformed queue size", "AUDIT_QUEUE_SIZE", "many"},
		{"negative rate limit", "RATE_LIMIT_RPM", "-1"},
		{"zero burst", "RATE_LIMIT_BURST", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
