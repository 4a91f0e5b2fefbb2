package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateCompliance(&cfg.Compliance)...)
	errs = append(errs, validateInsights(&cfg.Insights)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	durations := map[string]time.Duration{
		"server.read_timeout":     cfg.ReadTimeout,
		"server.write_timeout":    cfg.WriteTimeout,
		"server.idle_timeout":     cfg.IdleTimeout,
		"server.shutdown_timeout": cfg.ShutdownTimeout,
		"server.request_timeout":  cfg.RequestTimeout,
	}
	for _, field := range sortedKeys(durations) {
		if durations[field] < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}
	if cfg.UserHeader == "" {
		errs = append(errs, FieldError{Field: "server.user_header", Message: "user header is required"})
	}
	if cfg.CORS.Enabled && len(cfg.CORS.AllowedOrigins) == 0 {
		errs = append(errs, FieldError{Field: "server.cors.allowed_origins", Message: "at least one origin is required when CORS is enabled"})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "modernc" && cfg.SQLite.Driver != "cgo" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be modernc or cgo)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "storage.sqlite.max_open_conns", Message: "must not be negative"})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns && cfg.SQLite.MaxOpenConns > 0 {
			errs = append(errs, FieldError{Field: "storage.sqlite.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite or memory)", cfg.Backend),
		})
	}
	return errs
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		errs = append(errs, FieldError{Field: "ledger.time_zone", Message: fmt.Sprintf("unknown time zone %q", cfg.TimeZone)})
	}
	if cfg.MaxClockSkew < 0 {
		errs = append(errs, FieldError{Field: "ledger.max_clock_skew", Message: "must not be negative"})
	}
	if cfg.MaxDescriptionLength < 0 {
		errs = append(errs, FieldError{Field: "ledger.max_description_length", Message: "must not be negative"})
	}
	return errs
}

func validateCompliance(cfg *ComplianceConfig) []FieldError {
	var errs []FieldError

	if cfg.HistoryLimit < 0 {
		errs = append(errs, FieldError{Field: "compliance.history_limit", Message: "must not be negative"})
	}
	if cfg.SweepEnabled {
		if err := validateSchedule(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{Field: "compliance.sweep_schedule", Message: err.Error()})
		}
	}
	return errs
}

func validateInsights(cfg *InsightsConfig) []FieldError {
	var errs []FieldError

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "insights.workers", Message: "must be at least 1"})
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{Field: "insights.queue_size", Message: "must be at least 1"})
	}
	if cfg.PatternThreshold <= 0 || cfg.PatternThreshold >= 1 {
		errs = append(errs, FieldError{Field: "insights.pattern_threshold", Message: "must be between 0 and 1 (exclusive)"})
	}
	if cfg.PatternMinEvents < 1 {
		errs = append(errs, FieldError{Field: "insights.pattern_min_events", Message: "must be at least 1"})
	}
	if cfg.StreakDays < 2 {
		errs = append(errs, FieldError{Field: "insights.streak_days", Message: "must be at least 2"})
	}
	if cfg.WarningDays < 1 || cfg.WarningDays > cfg.WarningLookbackDays {
		errs = append(errs, FieldError{Field: "insights.warning_days", Message: "must be between 1 and warning_lookback_days"})
	}
	for i, m := range cfg.Milestones {
		if m < 1 {
			errs = append(errs, FieldError{Field: fmt.Sprintf("insights.milestones[%d]", i), Message: "must be positive"})
		}
	}
	if cfg.TTL < 0 {
		errs = append(errs, FieldError{Field: "insights.ttl", Message: "must not be negative"})
	}
	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if err := validateSchedule(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{Field: "retention.schedule", Message: err.Error()})
		}
	}
	if cfg.DismissedDays < 1 {
		errs = append(errs, FieldError{Field: "retention.dismissed_days", Message: "must be at least 1"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	return errs
}

// validateSchedule checks a standard five-field cron expression.
func validateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %v", expr, err)
	}
	return nil
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
