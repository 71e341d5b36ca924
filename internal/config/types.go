package config

import "time"

// Config holds all configuration for the scorer and the reconciler.
type Config struct {
	DBName         string
	Port           string
	LogLevel       string
	AllowedOrigins []string
	Turso          TursoConfig
	Sync           SyncConfig
	Resilience     ResilienceConfig
	Slack          SlackConfig
	ProjectID      string
	// TripFile is an optional YAML trip definition imported at startup.
	TripFile string
	// ReconcileTokens is the reconciler's token list, "token=trip-1|trip-2,other=*".
	ReconcileTokens string
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

// SyncConfig drives the scorer's dispatcher. An empty Endpoint keeps every
// mutation queued locally.
type SyncConfig struct {
	Endpoint        string
	Token           string
	Interval        time.Duration
	BatchSize       int
	MaxAutoAttempts int
	Concurrency     int
}

type ResilienceConfig struct {
	CircuitThreshold int
	CircuitResetTime time.Duration
	RequestTimeout   time.Duration
	RequestRetries   int
	RetryDelay       time.Duration
}

type SlackConfig struct {
	Token     string
	ChannelID string
}

// Enabled reports whether Slack notifications can be sent.
func (s SlackConfig) Enabled() bool {
	return s.Token != "" && s.ChannelID != ""
}
