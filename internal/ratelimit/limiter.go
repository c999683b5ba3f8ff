// Package ratelimit implements a sliding-window rate limiter on Redis.
//
// Each (scope, key) pair owns a sorted set of request timestamps; one
// Lua script prunes the window, checks the count and admits the request
// atomically, so concurrent instances never over-admit. The limiter
// fails open: when Redis is unreachable, requests pass and the outage
// is logged, because locking every tenant out of login is worse than a
// brief enforcement gap.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tenantauth/tenantauth/internal/metrics"
	"github.com/tenantauth/tenantauth/internal/uniuri"
)

// Result is the outcome of one admission check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Limit is the configured maximum for the window.
	Limit int
	// Remaining is the number of requests left in the current window.
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter returns the wait until a retry can succeed. Zero when the
// request was allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}

	wait := r.ResetAt.Sub(now)
	if wait < 0 {
		wait = 0
	}

	return wait
}

// allowScript prunes expired entries, counts the window and either
// rejects or records the request, atomically.
//
// KEYS[1] = window key
// ARGV[1] = now (unix milliseconds)
// ARGV[2] = window length (milliseconds)
// ARGV[3] = limit
// ARGV[4] = unique member for this request
//
// Returns {allowed, remaining, reset_at_ms}.
const allowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)

local count = redis.call("ZCARD", KEYS[1])

if count >= limit then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  return {0, 0, tonumber(oldest[2]) + window}
end

redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return {1, limit - count - 1, now + window}
`

var allowLua = redis.NewScript(allowScript)

// Limiter is the Redis-backed sliding window limiter.
type Limiter struct {
	redis   redis.UniversalClient
	prefix  string
	enabled bool
	now     func() time.Time
}

// NewLimiter creates a limiter. When enabled is false every check
// passes without touching Redis.
func NewLimiter(client redis.UniversalClient, prefix string, enabled bool) *Limiter {
	return &Limiter{
		redis:   client,
		prefix:  prefix,
		enabled: enabled,
		now:     time.Now,
	}
}

// Allow admits or rejects one request for (scope, key). scope names the
// protected operation ("login", "api"); key identifies the caller and
// must already carry the tenant so that one tenant's burst cannot
// exhaust another's budget.
func (l *Limiter) Allow(ctx context.Context, scope, key string, limit int, window time.Duration) *Result {
	if !l.enabled || limit <= 0 {
		return &Result{Allowed: true, Limit: limit, Remaining: limit}
	}

	now := l.now()
	redisKey := fmt.Sprintf("%s:rl:%s:%s", l.prefix, scope, key)

	res, err := allowLua.Run(ctx, l.redis,
		[]string{redisKey},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uniuri.New(),
	).Int64Slice()
	if err != nil {
		log.Warn().Err(err).
			Str("scope", scope).
			Msg("rate limiter backend unavailable, failing open")

		return &Result{Allowed: true, Limit: limit, Remaining: limit}
	}

	if len(res) != 3 {
		log.Warn().
			Int("len", len(res)).
			Msg("rate limiter script returned unexpected result, failing open")

		return &Result{Allowed: true, Limit: limit, Remaining: limit}
	}

	result := &Result{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: int(res[1]),
		ResetAt:   time.UnixMilli(res[2]),
	}

	if !result.Allowed {
		metrics.RateLimitRejections.WithLabelValues(scope).Inc()
	}

	return result
}

// Reset clears the window for (scope, key). Used when a successful
// login should forgive earlier failed attempts.
func (l *Limiter) Reset(ctx context.Context, scope, key string) {
	if !l.enabled {
		return
	}

	redisKey := fmt.Sprintf("%s:rl:%s:%s", l.prefix, scope, key)

	if err := l.redis.Del(ctx, redisKey).Err(); err != nil {
		log.Warn().Err(err).
			Str("scope", scope).
			Msg("failed to reset rate limit window")
	}
}
