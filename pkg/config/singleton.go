package config

import (
	"fmt"
	"sync"
)

var (
	// globalConfig holds the process-wide configuration.
	globalConfig *Config

	// configMutex protects globalConfig.
	configMutex sync.RWMutex

	// initOnce makes Initialize run at most once.
	initOnce sync.Once
)

// Initialize loads configuration (file plus CALLISTO_* overrides) and stores
// it as the global configuration. Only the first call has any effect.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		SetConfig(cfg)
	})

	return initErr
}

// GetConfig returns the global configuration, or nil before Initialize.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the global configuration.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads the configuration from path. The current
// configuration is kept if loading or validation fails.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	SetConfig(cfg)
	return nil
}

// MustGetConfig returns the global configuration and panics if it has not
// been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
