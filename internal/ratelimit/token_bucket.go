package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "normalflow:ratelimit"

// One bucket per route and caller. Refill and take run atomically inside
// Redis so several API processes share the bucket. Returns
// {allowed, remaining, retry_after_ms}.
const tokenBucketScript = `
local capacity = tonumber(ARGV[1])
local per_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local last = tonumber(state[2]) or now

tokens = math.min(capacity, tokens + math.max(0, now - last) * per_ms)

local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / per_ms)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

if wait == 0 then
  return {1, math.floor(tokens), 0}
end
return {0, math.floor(tokens), wait}
`

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type RedisTokenBucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
	script      *redis.Script
}

// Connect opens a Redis client, checks it answers and wraps it in a bucket.
func Connect(ctx context.Context, opts *redis.Options, capacity int, window time.Duration) (*RedisTokenBucket, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	bucket, err := NewRedisTokenBucket(client, capacity, window, defaultKeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return bucket, nil
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}

	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = defaultKeyPrefix
	}

	windowMS := max(window.Milliseconds(), 1)

	return &RedisTokenBucket{
		client:      client,
		capacity:    int64(capacity),
		refillPerMS: float64(capacity) / float64(windowMS),
		ttl:         2 * window,
		keyPrefix:   keyPrefix,
		now:         time.Now,
		script:      redis.NewScript(tokenBucketScript),
	}, nil
}

// Allow takes one token from the bucket of subject on route.
func (l *RedisTokenBucket) Allow(ctx context.Context, route, subject string) (Decision, error) {
	values, err := l.script.Run(
		ctx,
		l.client,
		[]string{l.key(route, subject)},
		l.capacity,
		l.refillPerMS,
		l.now().UTC().UnixMilli(),
		l.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket route=%s: %w", route, err)
	}
	return decisionFromReply(values)
}

// key lays buckets out as <prefix>:<route>:<subject>, e.g.
// normalflow:ratelimit:download-repo:203.0.113.9.
func (l *RedisTokenBucket) key(route, subject string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		route = "root"
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return l.keyPrefix + ":" + route + ":" + subject
}

func (l *RedisTokenBucket) Close() error {
	return l.client.Close()
}

func decisionFromReply(values []int64) (Decision, error) {
	if len(values) != 3 {
		return Decision{}, fmt.Errorf("token bucket reply has %d values, want 3", len(values))
	}
	if values[0] != 0 && values[0] != 1 {
		return Decision{}, fmt.Errorf("token bucket reply: bad allow flag %d", values[0])
	}
	return Decision{
		Allowed:    values[0] == 1,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}
