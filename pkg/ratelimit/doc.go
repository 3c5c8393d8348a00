// Package ratelimit throttles requests per key with a token bucket and an
// optional in-flight cap.
//
// The API server keys it by tenant id:
//
//	limiter := ratelimit.New(ratelimit.FromConfig(&cfg.Server.RateLimit))
//	d := limiter.Allow(tenantID)
//	if !d.Allowed {
//	    // 429, Retry-After: d.RetryAfter
//	}
//	defer d.Release()
//
// Buckets for keys that have been idle longer than Config.IdleTTL are
// dropped, so the number of tracked tenants stays bounded by traffic.
package ratelimit
