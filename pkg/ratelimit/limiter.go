package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	bucket     *TokenBucket
	concurrent *ConcurrentLimiter
	lastSeen   time.Time
}

// Limiter applies Config independently to each key.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

// New returns a limiter. It allows everything when cfg sets no limit.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.RequestsPerSecond > 0 && cfg.Burst <= 0 {
		cfg.Burst = max(1, int(2*cfg.RequestsPerSecond))
	}
	return &Limiter{
		cfg:       cfg,
		now:       now,
		entries:   make(map[string]*entry),
		lastSweep: now(),
	}
}

// Allow checks key against its limits. The returned Decision must be
// released once the request finishes.
func (l *Limiter) Allow(key string) Decision {
	if !l.cfg.Enabled() {
		return Decision{Allowed: true}
	}

	e := l.entry(key)
	if e.bucket != nil && !e.bucket.Take(1) {
		return Decision{Reason: ReasonRate, RetryAfter: e.bucket.TimeUntilAvailable(1)}
	}
	if e.concurrent == nil {
		return Decision{Allowed: true}
	}
	if !e.concurrent.Acquire() {
		return Decision{Reason: ReasonConcurrent, RetryAfter: time.Second}
	}
	var once sync.Once
	return Decision{Allowed: true, release: func() { once.Do(e.concurrent.Release) }}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) entry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		l.sweepLocked(now)
	}

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		if l.cfg.RequestsPerSecond > 0 {
			e.bucket = newTokenBucket(l.cfg.Burst, l.cfg.RequestsPerSecond, l.now)
		}
		if l.cfg.MaxConcurrent > 0 {
			e.concurrent = NewConcurrentLimiter(l.cfg.MaxConcurrent)
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

// sweepLocked drops idle keys with no request in flight.
func (l *Limiter) sweepLocked(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) < l.cfg.IdleTTL {
			continue
		}
		if e.concurrent != nil && e.concurrent.Current() > 0 {
			continue
		}
		delete(l.entries, key)
	}
	l.lastSweep = now
}
