package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript implements the token bucket atomically on the Redis side.
// KEYS[1] bucket key; ARGV: tokens, capacity, refill rate, refill interval
// (ms), now (ms). Returns {remaining, last_refill_ms}.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local tokens = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill')
local remaining = tonumber(state[1])
local last = tonumber(state[2])

if remaining == nil then
	remaining = capacity
	last = now
else
	local elapsed = now - last
	if elapsed >= interval then
		local intervals = math.floor(elapsed / interval)
		remaining = math.min(capacity, remaining + intervals * rate)
		last = last + intervals * interval
	end
end

remaining = remaining - tokens
local result = remaining
if remaining < 0 then
	remaining = 0
end

redis.call('HSET', key, 'tokens', remaining, 'last_refill', last)
local ttl = math.ceil(interval * math.ceil(capacity / rate) / 1000) * 2
redis.call('EXPIRE', key, ttl)

return {result, last}
`)

// RedisStore is a Store backed by Redis, sharing bucket state across
// instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore. Keys are stored under the given
// prefix, "ratelimit" when empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// ConsumeTokens implements Store.
func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int64, config Config) (Result, error) {
	if config.Capacity <= 0 || config.RefillRate <= 0 || config.RefillInterval <= 0 {
		return Result{}, ErrInvalidConfig
	}

	now := time.Now()
	raw, err := consumeScript.Run(ctx, s.client, []string{s.key(key)},
		tokens,
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, errors.Join(ErrStoreFailure, err)
	}
	if len(raw) != 2 {
		return Result{}, ErrStoreFailure
	}

	remaining, lastMs := raw[0], raw[1]
	b := &bucket{tokens: remaining, lastRefill: time.UnixMilli(lastMs)}
	if b.tokens < 0 {
		b.tokens = 0
	}
	return Result{
		Limit:     config.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt(b, config, now),
	}, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}
