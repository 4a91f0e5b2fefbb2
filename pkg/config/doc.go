// Package config provides configuration management for Callisto.
//
// Configuration is loaded from a YAML file with environment variable
// overrides, validated, and optionally stored as a process-wide singleton.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLISTO_SECTION_FIELD:
//
//   - CALLISTO_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CALLISTO_STORAGE_SQLITE_DRIVER overrides storage.sqlite.driver
//   - CALLISTO_INSIGHTS_ASYNC overrides insights.async
//   - CALLISTO_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (DefaultConfig)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// Tests should prefer passing *Config explicitly and use SetConfig only
// when a global is unavoidable.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: data/callisto.db
//	    driver: modernc
//	policy:
//	  file_path: ./policies.yaml
//	  watch: true
//	ledger:
//	  time_zone: Europe/Amsterdam
//	insights:
//	  async: true
//	  streak_days: 7
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
