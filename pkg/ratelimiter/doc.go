// Package ratelimiter implements a token bucket with pluggable storage.
// The in-memory store covers a single process; the Redis store shares
// state across instances. Bucket parameters are passed per call so the
// limit can follow the caller's plan entitlement.
package ratelimiter
