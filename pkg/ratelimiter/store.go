package ratelimiter

import "context"

// Store persists token bucket state. Implementations must be safe for
// concurrent use.
type Store interface {
	// ConsumeTokens attempts to take tokens from the bucket identified by
	// key, creating the bucket at full capacity on first sight. The Result
	// is returned even when the attempt is denied.
	ConsumeTokens(ctx context.Context, key string, tokens int64, config Config) (Result, error)
	// Reset removes the bucket so the next attempt starts from a full one.
	Reset(ctx context.Context, key string) error
}
