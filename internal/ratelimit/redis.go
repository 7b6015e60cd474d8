package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes atomically.
// KEYS[1] bucket key, ARGV: rate per second, capacity, cost, now (seconds), ttl (seconds)
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, ttl)

return {allowed, tostring(tokens)}
`)

// Redis shares buckets across service instances.
type Redis struct {
	client redis.Scripter
	policy Policy
	prefix string
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

func NewRedis(client redis.Scripter, p Policy, prefix string) (*Redis, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{client: client, policy: p, prefix: prefix, now: time.Now}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	rps := r.policy.perSecond()
	// Keep the hash just long enough for a full refill.
	ttl := int(math.Ceil(float64(r.policy.Burst)/rps)) + 1
	now := float64(r.now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, r.client,
		[]string{fmt.Sprintf("%s:%s", r.prefix, key)},
		rps, r.policy.Burst, 1, now, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return false, errors.New("redis limiter: unexpected script reply")
	}
	allowed, _ := vals[0].(int64)
	return allowed == 1, nil
}
