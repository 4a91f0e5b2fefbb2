package config

import "time"

// Config is the root configuration structure for Callisto.
// It contains all configuration sections for the HTTP server, storage,
// policy source, usage ledger, compliance evaluation, insight generation,
// retention jobs and telemetry.
type Config struct {
	// Server contains HTTP API server configuration including listen address,
	// timeouts, request limits and CORS.
	Server ServerConfig `yaml:"server"`

	// Storage selects and configures the persistence backend.
	Storage StorageConfig `yaml:"storage"`

	// Policy configures the policies file and hot reload.
	Policy PolicyConfig `yaml:"policy"`

	// Ledger configures usage event validation and calendar-day boundaries.
	Ledger LedgerConfig `yaml:"ledger"`

	// Compliance configures evaluation history and the periodic sweep.
	Compliance ComplianceConfig `yaml:"compliance"`

	// Insights configures the insight rules and regeneration workers.
	Insights InsightsConfig `yaml:"insights"`

	// Retention configures the insight pruning job.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the handling of a single API request.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits JSON request bodies.
	// Default: 65536
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// UserHeader is the header carrying the authenticated user id, set by
	// the upstream authentication proxy.
	// Default: "X-User-ID"
	UserHeader string `yaml:"user_header"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. ["*"] allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	// Default: ["Content-Type", "X-Request-ID", "X-User-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/callisto.db"
	Path string `yaml:"path"`

	// Driver is "modernc" (pure Go) or "cgo" (mattn/go-sqlite3).
	// Default: "modernc"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 2
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PolicyConfig configures the YAML policy source.
type PolicyConfig struct {
	// FilePath is the policies file. Empty disables file synchronization.
	// Default: "./policies.yaml"
	FilePath string `yaml:"file_path"`

	// SyncOnStart synchronizes the policies file when the server starts.
	// Default: true
	SyncOnStart bool `yaml:"sync_on_start"`

	// Watch re-synchronizes the file when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a change is applied.
	// Default: 250ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Actor is recorded as the author of file-driven changes.
	// Default: "policy-file"
	Actor string `yaml:"actor"`
}

// LedgerConfig configures usage recording.
type LedgerConfig struct {
	// TimeZone is the IANA zone used for calendar-day windows.
	// Default: "UTC"
	TimeZone string `yaml:"time_zone"`

	// MaxClockSkew is how far in the future an event timestamp may be.
	// Default: 5m
	MaxClockSkew time.Duration `yaml:"max_clock_skew"`

	// MaxDescriptionLength bounds free-text fields.
	// Default: 2000
	MaxDescriptionLength int `yaml:"max_description_length"`

	// DefaultHistoryLimit caps history queries that do not set a limit.
	// Default: 500
	DefaultHistoryLimit int `yaml:"default_history_limit"`
}

// ComplianceConfig configures compliance evaluation.
type ComplianceConfig struct {
	// HistoryLimit is the default number of snapshots returned.
	// Default: 50
	HistoryLimit int `yaml:"history_limit"`

	// SweepEnabled runs the periodic week-window evaluation of active users.
	// Default: true
	SweepEnabled bool `yaml:"sweep_enabled"`

	// SweepSchedule is the cron expression for the sweep.
	// Default: "0 2 * * 1" (Mondays at 02:00)
	SweepSchedule string `yaml:"sweep_schedule"`
}

// InsightsConfig configures insight generation.
type InsightsConfig struct {
	// Async queues regeneration on a worker pool instead of running it
	// inside Record.
	// Default: false
	Async bool `yaml:"async"`

	// Workers is the number of regeneration workers when Async is set.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize is the per-worker queue length. A full queue falls back to
	// synchronous regeneration.
	// Default: 256
	QueueSize int `yaml:"queue_size"`

	// PatternThreshold is the share of one tool that triggers a pattern insight.
	// Default: 0.7
	PatternThreshold float64 `yaml:"pattern_threshold"`

	// PatternMinEvents is the minimum 30-day history for pattern insights.
	// Default: 5
	PatternMinEvents int `yaml:"pattern_min_events"`

	// StreakDays is the consecutive-day streak that earns an achievement.
	// Default: 7
	StreakDays int `yaml:"streak_days"`

	// WarningDays is how many over-limit days in the lookback raise a warning.
	// Default: 3
	WarningDays int `yaml:"warning_days"`

	// WarningLookbackDays is the lookback for WarningDays.
	// Default: 7
	WarningLookbackDays int `yaml:"warning_lookback_days"`

	// Milestones are total event counts that earn an achievement.
	// Default: [10, 50, 100, 250, 500, 1000]
	Milestones []int `yaml:"milestones"`

	// TTL sets expires_at on new insights. Zero means insights never expire.
	// Default: 720h (30 days)
	TTL time.Duration `yaml:"ttl"`
}

// RetentionConfig configures insight pruning.
type RetentionConfig struct {
	// Enabled runs the pruning job.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is the cron expression for pruning.
	// Default: "0 3 * * *" (daily at 03:00)
	Schedule string `yaml:"schedule"`

	// DismissedDays deletes dismissed insights this many days after dismissal.
	// Default: 30
	DismissedDays int `yaml:"dismissed_days"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks emails and student numbers in log output.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "callisto"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "usage"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for evaluation and
	// regeneration durations (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// Location returns the configured time zone, falling back to UTC when the
// zone cannot be loaded.
func (c *LedgerConfig) Location() *time.Location {
	if c.TimeZone == "" || c.TimeZone == "UTC" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
