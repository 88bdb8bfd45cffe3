// Package ratelimit provides token-bucket limiters keyed by caller. The Redis
// limiter shares buckets across replicas; the local limiter is used when
// Redis is disabled.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Config holds token bucket parameters.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstCapacity     int
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucketScript refills the bucket for the elapsed time, then tries to
// take one token. Returns 1 when allowed.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', now, 'tokens', tokens)
redis.call('EXPIRE', key, ttl)
return allowed
`)

// RedisTokenBucket is a distributed token bucket stored in Redis hashes.
type RedisTokenBucket struct {
	rdb    redis.Scripter
	cfg    Config
	prefix string
	ttl    int
	now    func() time.Time
}

// NewRedisTokenBucket creates a limiter whose keys are prefixed with prefix.
func NewRedisTokenBucket(rdb redis.Scripter, cfg Config, prefix string) *RedisTokenBucket {
	// Keep idle buckets long enough to refill completely.
	ttl := 60
	if cfg.RequestsPerSecond > 0 {
		ttl = max(ttl, int(math.Ceil(float64(cfg.BurstCapacity)/cfg.RequestsPerSecond))+1)
	}
	return &RedisTokenBucket{rdb: rdb, cfg: cfg, prefix: prefix, ttl: ttl, now: time.Now}
}

// Allow consumes one token from the bucket for key.
func (l *RedisTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(l.now().UnixMicro()) / 1e6
	res, err := tokenBucketScript.Run(ctx, l.rdb, []string{l.prefix + key},
		l.cfg.RequestsPerSecond, l.cfg.BurstCapacity, now, l.ttl,
	).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Local keeps one x/time/rate limiter per key in process memory.
type Local struct {
	cfg Config

	mu       sync.Mutex
	limiters map[string]*localEntry
	lastGC   time.Time
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const localIdleTTL = 10 * time.Minute

// NewLocal creates an in-process limiter.
func NewLocal(cfg Config) *Local {
	return &Local{cfg: cfg, limiters: make(map[string]*localEntry), lastGC: time.Now()}
}

// Allow never returns an error.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > localIdleTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > localIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{lim: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstCapacity)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1), nil
}
