// Package ratelimit throttles email-sending account operations per
// normalized address, using a token bucket kept in redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms}
`

// KeyPrefix namespaces every bucket.
const KeyPrefix = "hawiyat:ratelimit:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter grants one request per Interval per key, with up to Burst
// requests saved up.
type Limiter struct {
	rdb    redis.Scripter
	script *redis.Script
	rate   float64 // tokens per second
	burst  float64
	now    func() time.Time
}

// NewLimiter creates a limiter. A non-positive interval or burst disables
// limiting.
func NewLimiter(rdb redis.Scripter, interval time.Duration, burst int) *Limiter {
	var rate float64
	if interval > 0 {
		rate = 1 / interval.Seconds()
	}
	return &Limiter{
		rdb:    rdb,
		script: redis.NewScript(tokenBucketLua),
		rate:   rate,
		burst:  float64(burst),
		now:    time.Now,
	}
}

// Allow takes one token from the bucket for scope and key.
func (l *Limiter) Allow(ctx context.Context, scope, key string) (Decision, error) {
	if l.rate <= 0 || l.burst <= 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := l.script.Run(ctx, l.rdb, []string{KeyPrefix + scope + ":" + key},
		l.rate, l.burst, l.now().UnixMilli(), 1).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %T", res)
	}
	return Decision{
		Allowed:    toInt64(values[0]) == 1,
		RetryAfter: time.Duration(toInt64(values[1])) * time.Millisecond,
	}, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
