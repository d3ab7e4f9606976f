package ratelimiter

import (
	"time"
)

// Config describes a token bucket. Capacity is the burst size, RefillRate
// tokens are added every RefillInterval until the bucket is full.
type Config struct {
	Capacity       int64
	RefillRate     int64
	RefillInterval time.Duration
}

// PerMinute returns a bucket that admits n requests per minute with a burst
// of n. This matches plan entitlements, which are expressed as a flat
// requests-per-minute ceiling.
func PerMinute(n int64) Config {
	return Config{Capacity: n, RefillRate: n, RefillInterval: time.Minute}
}

// Result reports the outcome of a token consumption attempt.
type Result struct {
	// Limit is the bucket capacity the decision was made against.
	Limit int64
	// Remaining is the number of tokens left after this attempt.
	Remaining int64
	// ResetAt is when the bucket will be full again.
	ResetAt time.Time
}

// Allowed reports whether the request may proceed.
func (r Result) Allowed() bool { return r.Remaining >= 0 }

// RetryAfter returns how long the caller should wait before retrying.
// It is zero when the request was allowed.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	d := time.Until(r.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
