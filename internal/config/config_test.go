package config

import (
	"testing"
	"time"

	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(env(map[string]string{"DB_NAME": "scorer.db"}))
	require.NoError(t, err)

	assert.Equal(t, "scorer.db", cfg.DBName)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.MaxAutoAttempts)
	assert.Equal(t, resilience.BreakerOptions{Threshold: 5, ResetTime: 30 * time.Second}, cfg.BreakerOptions())
	assert.Equal(t, resilience.DefaultPolicy(), cfg.Policy())
	assert.False(t, cfg.Slack.Enabled())
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(env(map[string]string{
		"DB_NAME":                "scorer.db",
		"PORT":                   "9090",
		"SYNC_ENDPOINT":          "https://reconciler.example.com/v1/sync",
		"SYNC_TOKEN":             "secret",
		"SYNC_INTERVAL":          "1m",
		"SYNC_MAX_AUTO_ATTEMPTS": "5",
		"CIRCUIT_THRESHOLD":      "2",
		"CIRCUIT_RESET_TIME":     "60000",
		"REQUEST_TIMEOUT":        "2s",
		"REQUEST_RETRIES":        "0",
		"RETRY_DELAY":            "250ms",
		"ALLOWED_ORIGINS":        "https://a.example.com, https://b.example.com,",
		"SLACK_BOT_TOKEN":        "xoxb",
		"SLACK_CHANNEL_ID":       "C1",
		"LOG_LEVEL":              "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Slack.Enabled())

	opts := cfg.DispatcherOptions()
	assert.Equal(t, 5, opts.MaxAutoAttempts)
	assert.Equal(t, 2, opts.Breaker.Threshold)
	assert.Equal(t, time.Minute, opts.Breaker.ResetTime)
	assert.Equal(t, resilience.Policy{Timeout: 2 * time.Second, Retries: 0, BaseDelay: 250 * time.Millisecond}, opts.Policy)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	_, err := Parse(env(map[string]string{
		"SYNC_BATCH_SIZE":    "0",
		"CIRCUIT_RESET_TIME": "soon",
		"REQUEST_RETRIES":    "-1",
		"LOG_LEVEL":          "chatty",
	}))
	require.Error(t, err)
	for _, key := range []string{"DB_NAME", "SYNC_BATCH_SIZE", "CIRCUIT_RESET_TIME", "REQUEST_RETRIES", "LOG_LEVEL"} {
		assert.Contains(t, err.Error(), key)
	}
}
