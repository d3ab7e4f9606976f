// Package redis wraps the go-redis client with retrying connect and a
// readiness probe. The rate limiter uses Redis as its shared store when
// the platform runs more than one instance.
package redis
