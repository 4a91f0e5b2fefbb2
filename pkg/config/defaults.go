package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = int64(65536)
	DefaultUserHeader      = "X-User-ID"
	DefaultCORSMaxAge      = 3600

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/callisto.db"
	DefaultSQLiteDriver       = "modernc"
	DefaultSQLiteMaxOpenConns = 4
	DefaultSQLiteMaxIdleConns = 2
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Policy defaults
	DefaultPolicyFilePath      = "./policies.yaml"
	DefaultPolicySyncOnStart   = true
	DefaultPolicyWatchDebounce = 250 * time.Millisecond
	DefaultPolicyActor         = "policy-file"

	// Ledger defaults
	DefaultTimeZone             = "UTC"
	DefaultMaxClockSkew         = 5 * time.Minute
	DefaultMaxDescriptionLength = 2000
	DefaultHistoryLimit         = 500

	// Compliance defaults
	DefaultComplianceHistoryLimit = 50
	DefaultSweepEnabled           = true
	DefaultSweepSchedule          = "0 2 * * 1"

	// Insight defaults
	DefaultInsightWorkers      = 4
	DefaultInsightQueueSize    = 256
	DefaultPatternThreshold    = 0.7
	DefaultPatternMinEvents    = 5
	DefaultStreakDays          = 7
	DefaultWarningDays         = 3
	DefaultWarningLookbackDays = 7
	DefaultInsightTTL          = 30 * 24 * time.Hour

	// Retention defaults
	DefaultRetentionEnabled       = true
	DefaultRetentionSchedule      = "0 3 * * *"
	DefaultRetentionDismissedDays = 30

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "callisto"
	DefaultMetricsSubsystem = "usage"
)

// DefaultMilestones are the total event counts that earn an achievement.
var DefaultMilestones = []int{10, 50, 100, 250, 500, 1000}

// DefaultConfig returns a configuration with every default applied. YAML
// files are decoded on top of it, so booleans that default to true can be
// switched off explicitly.
func DefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			SQLite: SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Policy: PolicyConfig{
			SyncOnStart: DefaultPolicySyncOnStart,
		},
		Compliance: ComplianceConfig{
			SweepEnabled: DefaultSweepEnabled,
		},
		Retention: RetentionConfig{
			Enabled: DefaultRetentionEnabled,
		},
		Insights: InsightsConfig{
			TTL: DefaultInsightTTL,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultLoggingRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent. Boolean fields are left alone because their zero value
// is meaningful; DefaultConfig seeds them instead.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.UserHeader == "" {
		cfg.Server.UserHeader = DefaultUserHeader
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID", cfg.Server.UserHeader}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Policy defaults
	if cfg.Policy.FilePath == "" {
		cfg.Policy.FilePath = DefaultPolicyFilePath
	}
	if cfg.Policy.WatchDebounce == 0 {
		cfg.Policy.WatchDebounce = DefaultPolicyWatchDebounce
	}
	if cfg.Policy.Actor == "" {
		cfg.Policy.Actor = DefaultPolicyActor
	}

	// Ledger defaults
	if cfg.Ledger.TimeZone == "" {
		cfg.Ledger.TimeZone = DefaultTimeZone
	}
	if cfg.Ledger.MaxClockSkew == 0 {
		cfg.Ledger.MaxClockSkew = DefaultMaxClockSkew
	}
	if cfg.Ledger.MaxDescriptionLength == 0 {
		cfg.Ledger.MaxDescriptionLength = DefaultMaxDescriptionLength
	}
	if cfg.Ledger.DefaultHistoryLimit == 0 {
		cfg.Ledger.DefaultHistoryLimit = DefaultHistoryLimit
	}

	// Compliance defaults
	if cfg.Compliance.HistoryLimit == 0 {
		cfg.Compliance.HistoryLimit = DefaultComplianceHistoryLimit
	}
	if cfg.Compliance.SweepSchedule == "" {
		cfg.Compliance.SweepSchedule = DefaultSweepSchedule
	}

	// Insight defaults
	if cfg.Insights.Workers == 0 {
		cfg.Insights.Workers = DefaultInsightWorkers
	}
	if cfg.Insights.QueueSize == 0 {
		cfg.Insights.QueueSize = DefaultInsightQueueSize
	}
	if cfg.Insights.PatternThreshold == 0 {
		cfg.Insights.PatternThreshold = DefaultPatternThreshold
	}
	if cfg.Insights.PatternMinEvents == 0 {
		cfg.Insights.PatternMinEvents = DefaultPatternMinEvents
	}
	if cfg.Insights.StreakDays == 0 {
		cfg.Insights.StreakDays = DefaultStreakDays
	}
	if cfg.Insights.WarningDays == 0 {
		cfg.Insights.WarningDays = DefaultWarningDays
	}
	if cfg.Insights.WarningLookbackDays == 0 {
		cfg.Insights.WarningLookbackDays = DefaultWarningLookbackDays
	}
	if cfg.Insights.Milestones == nil {
		cfg.Insights.Milestones = append([]int(nil), DefaultMilestones...)
	}

	// Retention defaults
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Retention.DismissedDays == 0 {
		cfg.Retention.DismissedDays = DefaultRetentionDismissedDays
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	}
}
