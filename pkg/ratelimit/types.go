package ratelimit

import (
	"time"

	"skuldbot/compliance/pkg/config"
)

const defaultIdleTTL = 10 * time.Minute

// Config sets the per-key limits. A zero field disables that limit.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	MaxConcurrent     int

	// IdleTTL is how long an unused key keeps its state.
	// Default: 10m
	IdleTTL time.Duration
}

// FromConfig reads the server rate limit section.
func FromConfig(cfg *config.RateLimitConfig) Config {
	return Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxConcurrent:     cfg.MaxConcurrent,
	}
}

// Enabled reports whether any limit is set.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0 || c.MaxConcurrent > 0
}

// Reason names the limit that rejected a request.
type Reason string

const (
	ReasonRate       Reason = "rate"
	ReasonConcurrent Reason = "concurrency"
)

// Decision is the outcome of Limiter.Allow.
type Decision struct {
	Allowed bool
	Reason  Reason

	// RetryAfter is set for rate rejections.
	RetryAfter time.Duration

	release func()
}

// Release frees the in-flight slot of an allowed request. It is a no-op for
// rejected requests and when no concurrency limit is set.
func (d Decision) Release() {
	if d.release != nil {
		d.release()
	}
}
