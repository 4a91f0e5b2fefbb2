package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CALLISTO_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of DefaultConfig, remaining zero values get
// defaults, and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named CALLISTO_SECTION_FIELD (for example
// CALLISTO_SERVER_LISTEN_ADDRESS). An empty path skips the file and starts
// from defaults.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envString("SERVER_USER_HEADER", &cfg.Server.UserHeader)
	envBool("SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	envList("SERVER_CORS_ALLOWED_ORIGINS", &cfg.Server.CORS.AllowedOrigins)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	envInt("STORAGE_SQLITE_MAX_OPEN_CONNS", &cfg.Storage.SQLite.MaxOpenConns)
	envBool("STORAGE_SQLITE_WAL_MODE", &cfg.Storage.SQLite.WALMode)
	envDuration("STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)

	// Policy overrides
	envString("POLICY_FILE_PATH", &cfg.Policy.FilePath)
	envBool("POLICY_SYNC_ON_START", &cfg.Policy.SyncOnStart)
	envBool("POLICY_WATCH", &cfg.Policy.Watch)

	// Ledger overrides
	envString("LEDGER_TIME_ZONE", &cfg.Ledger.TimeZone)
	envDuration("LEDGER_MAX_CLOCK_SKEW", &cfg.Ledger.MaxClockSkew)

	// Compliance overrides
	envBool("COMPLIANCE_SWEEP_ENABLED", &cfg.Compliance.SweepEnabled)
	envString("COMPLIANCE_SWEEP_SCHEDULE", &cfg.Compliance.SweepSchedule)

	// Insight overrides
	envBool("INSIGHTS_ASYNC", &cfg.Insights.Async)
	envInt("INSIGHTS_WORKERS", &cfg.Insights.Workers)
	envInt("INSIGHTS_QUEUE_SIZE", &cfg.Insights.QueueSize)
	envInt("INSIGHTS_STREAK_DAYS", &cfg.Insights.StreakDays)
	envDuration("INSIGHTS_TTL", &cfg.Insights.TTL)

	// Retention overrides
	envBool("RETENTION_ENABLED", &cfg.Retention.Enabled)
	envString("RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	envInt("RETENTION_DISMISSED_DAYS", &cfg.Retention.DismissedDays)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envList(name string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*dst = items
	}
}
