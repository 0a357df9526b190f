package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and takes one token atomically. It returns
// {allowed, tokens_left, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_per_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now_ms
end

local elapsed = math.max(0, now_ms - ts)
tokens = math.min(capacity, tokens + elapsed * refill_per_ms)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
elseif refill_per_ms > 0 then
  retry_ms = math.ceil((1 - tokens) / refill_per_ms)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now_ms)
redis.call('EXPIRE', key, ttl_seconds)
return {allowed, math.floor(tokens), retry_ms}
`)

// RedisRateLimiter is a token bucket shared by every replica through Redis.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	prefix string
	rps    float64
	burst  int
	ttl    time.Duration

	now func() time.Time
}

// NewRedisRateLimiter returns a limiter storing buckets under prefix.
func NewRedisRateLimiter(rdb redis.Scripter, prefix string, rps float64, burst int) *RedisRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RedisRateLimiter{
		rdb:    rdb,
		prefix: prefix,
		rps:    rps,
		burst:  burst,
		ttl:    10 * time.Minute,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := []any{
		r.now().UnixMilli(),
		r.burst,
		strconv.FormatFloat(r.rps/1000, 'f', -1, 64),
		int64(r.ttl / time.Second),
	}
	vals, err := tokenBucketScript.Run(ctx, r.rdb, []string{r.prefix + key}, args...).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(vals) != 3 {
		return false, 0, fmt.Errorf("rate limit script: unexpected result %v", vals)
	}
	if vals[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(vals[2]) * time.Millisecond, nil
}
