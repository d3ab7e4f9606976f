package ratelimiter

import "errors"

var (
	ErrInvalidConfig = errors.New("rate limiter config is invalid")
	ErrStoreFailure  = errors.New("rate limiter store failure")
)
