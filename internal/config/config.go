package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mauv0809/matchplay-trip/internal/resilience"
	"github.com/mauv0809/matchplay-trip/internal/syncqueue"
)

const (
	DefaultPort         = "8080"
	DefaultSyncInterval = 15 * time.Second
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	cfg, err := Parse(os.LookupEnv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse builds a Config from lookup. Every problem is reported, not just the first.
// Durations accept Go syntax ("30s") or a plain number of milliseconds.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}
	policy := resilience.DefaultPolicy()

	cfg := Config{
		DBName:         p.required("DB_NAME"),
		Port:           p.str("PORT", DefaultPort),
		LogLevel:       p.str("LOG_LEVEL", "info"),
		AllowedOrigins: p.list("ALLOWED_ORIGINS"),
		Turso: TursoConfig{
			PrimaryURL: p.str("TURSO_PRIMARY_URL", ""),
			AuthToken:  p.str("TURSO_AUTH_TOKEN", ""),
		},
		Sync: SyncConfig{
			Endpoint:        p.str("SYNC_ENDPOINT", ""),
			Token:           p.str("SYNC_TOKEN", ""),
			Interval:        p.duration("SYNC_INTERVAL", DefaultSyncInterval),
			BatchSize:       p.positive("SYNC_BATCH_SIZE", syncqueue.DefaultBatchSize),
			MaxAutoAttempts: p.positive("SYNC_MAX_AUTO_ATTEMPTS", syncqueue.DefaultMaxAutoAttempts),
			Concurrency:     p.positive("SYNC_CONCURRENCY", syncqueue.DefaultConcurrency),
		},
		Resilience: ResilienceConfig{
			CircuitThreshold: p.positive("CIRCUIT_THRESHOLD", resilience.DefaultThreshold),
			CircuitResetTime: p.duration("CIRCUIT_RESET_TIME", resilience.DefaultResetTime),
			RequestTimeout:   p.duration("REQUEST_TIMEOUT", policy.Timeout),
			RequestRetries:   p.nonNegative("REQUEST_RETRIES", policy.Retries),
			RetryDelay:       p.duration("RETRY_DELAY", policy.BaseDelay),
		},
		Slack: SlackConfig{
			Token:     p.str("SLACK_BOT_TOKEN", ""),
			ChannelID: p.str("SLACK_CHANNEL_ID", ""),
		},
		ProjectID:       p.str("GCP_PROJECT", ""),
		TripFile:        p.str("TRIP_FILE", ""),
		ReconcileTokens: p.str("RECONCILE_TOKENS", ""),
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		p.errs = append(p.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return cfg, errors.Join(p.errs...)
}

// BreakerOptions maps the circuit knobs onto the breaker.
func (c Config) BreakerOptions() resilience.BreakerOptions {
	return resilience.BreakerOptions{
		Threshold: c.Resilience.CircuitThreshold,
		ResetTime: c.Resilience.CircuitResetTime,
	}
}

// Policy maps the request knobs onto the retry policy.
func (c Config) Policy() resilience.Policy {
	return resilience.Policy{
		Timeout:   c.Resilience.RequestTimeout,
		Retries:   c.Resilience.RequestRetries,
		BaseDelay: c.Resilience.RetryDelay,
	}
}

// DispatcherOptions collects everything the sync dispatcher needs.
func (c Config) DispatcherOptions() syncqueue.Options {
	return syncqueue.Options{
		BatchSize:       c.Sync.BatchSize,
		MaxAutoAttempts: c.Sync.MaxAutoAttempts,
		Concurrency:     c.Sync.Concurrency,
		Breaker:         c.BreakerOptions(),
		Policy:          c.Policy(),
	}
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) required(key string) string {
	v, ok := p.get(key)
	if !ok {
		p.errs = append(p.errs, fmt.Errorf("required environment variable %s is not set", key))
	}
	return v
}

func (p *parser) str(key, def string) string {
	if v, ok := p.get(key); ok {
		return v
	}
	return def
}

func (p *parser) list(key string) []string {
	v, ok := p.get(key)
	if !ok {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) integer(key string, def, min int) int {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer >= %d, got %q", key, min, v))
		return def
	}
	return n
}

func (p *parser) positive(key string, def int) int    { return p.integer(key, def, 1) }
func (p *parser) nonNegative(key string, def int) int { return p.integer(key, def, 0) }

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s must be a positive duration, got %q", key, v))
		return def
	}
	return d
}
