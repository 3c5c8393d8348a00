package config

import (
	"sync"
	"sync/atomic"
)

var (
	current  atomic.Pointer[Config]
	initOnce sync.Once
	initErr  error
)

// Initialize loads path (plus .env and COMPLIANCE_* overrides) as the
// process configuration. Later calls return the first call's error and do
// not reload.
func Initialize(path string) error {
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		current.Store(cfg)
	})
	return initErr
}

// GetConfig returns the process configuration, or nil before Initialize.
// Callers must treat it as read-only.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process configuration. Intended for tests.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}
