package engine

import (
	"fmt"
	"runtime"
	"time"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/lattice"
)

// DefaultEscalation applies when no pack sets an escalation period.
const DefaultEscalation = 60 * time.Minute

// EngineConfig contains configuration for the evaluator and its pool.
type EngineConfig struct {
	// Lattice orders classifications.
	// Default: lattice.Default().
	Lattice *lattice.Lattice

	// DefaultEscalation is added to "now" for approval deadlines when no
	// pack sets escalationAfterMinutes.
	// Default: 60m.
	DefaultEscalation time.Duration

	// Workers is the number of pool goroutines.
	// Default: runtime.NumCPU().
	Workers int

	// QueueSize is the number of evaluations that may wait for a worker.
	// Default: 256.
	QueueSize int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Lattice:           lattice.Default(),
		DefaultEscalation: DefaultEscalation,
		Workers:           runtime.NumCPU(),
		QueueSize:         256,
	}
}

// FromConfig builds an engine configuration from the engine section, using
// the process lattice. Unset values keep their defaults.
func FromConfig(cfg *config.EngineConfig) *EngineConfig {
	c := DefaultEngineConfig()
	if cfg == nil {
		return c
	}
	if cfg.Workers > 0 {
		c.Workers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		c.QueueSize = cfg.QueueSize
	}
	if cfg.DefaultEscalationMinutes > 0 {
		c.DefaultEscalation = time.Duration(cfg.DefaultEscalationMinutes) * time.Minute
	}
	return c
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.Lattice == nil {
		return fmt.Errorf("%w: lattice is required", ErrInvalidConfig)
	}
	if c.DefaultEscalation <= 0 {
		return fmt.Errorf("%w: default escalation must be positive", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// WithLattice sets the classification lattice.
func (c *EngineConfig) WithLattice(l *lattice.Lattice) *EngineConfig {
	c.Lattice = l
	return c
}

// WithDefaultEscalation sets the fallback escalation period.
func (c *EngineConfig) WithDefaultEscalation(d time.Duration) *EngineConfig {
	c.DefaultEscalation = d
	return c
}

// WithWorkers sets the pool size.
func (c *EngineConfig) WithWorkers(n int) *EngineConfig {
	c.Workers = n
	return c
}

// WithQueueSize sets the pool queue length.
func (c *EngineConfig) WithQueueSize(n int) *EngineConfig {
	c.QueueSize = n
	return c
}
