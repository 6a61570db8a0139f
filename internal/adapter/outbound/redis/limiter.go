package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Microck/bansho/internal/domain/ratelimit"
)

// incrScript runs INCR and EXPIRE-on-first-increment as one atomic
// round trip. Script caching (EVALSHA with EVAL fallback) is handled
// by the client.
var incrScript = redis.NewScript(ratelimit.FixedWindowIncrScript)

// Limiter implements ratelimit.Limiter on Redis counters. Each check
// costs exactly one script invocation; a denied call has already
// consumed its increment.
type Limiter struct {
	rdb redis.Scripter
	now func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter on the given Redis client.
func NewLimiter(rdb redis.Scripter, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		rdb: rdb,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Compile-time check that Limiter implements the domain port.
var _ ratelimit.Limiter = (*Limiter)(nil)

// CheckAPIKeyLimit counts this call against the key's own window.
func (l *Limiter) CheckAPIKeyLimit(ctx context.Context, apiKeyID string, requests, windowSeconds int) (ratelimit.Result, error) {
	if err := ratelimit.ValidateWindow(requests, windowSeconds); err != nil {
		return ratelimit.Result{}, err
	}
	nowS := l.now().Unix()
	window := int64(windowSeconds)
	key := ratelimit.APIKeyCounterKey(apiKeyID, ratelimit.WindowBucket(nowS, window))
	return l.check(ctx, key, requests, nowS, window)
}

// CheckToolLimit counts this call against the key's window for one tool.
func (l *Limiter) CheckToolLimit(ctx context.Context, apiKeyID, toolName string, requests, windowSeconds int) (ratelimit.Result, error) {
	if err := ratelimit.ValidateWindow(requests, windowSeconds); err != nil {
		return ratelimit.Result{}, err
	}
	nowS := l.now().Unix()
	window := int64(windowSeconds)
	key := ratelimit.ToolCounterKey(apiKeyID, toolName, ratelimit.WindowBucket(nowS, window))
	return l.check(ctx, key, requests, nowS, window)
}

func (l *Limiter) check(ctx context.Context, key string, requests int, nowS, windowSeconds int64) (ratelimit.Result, error) {
	count, err := incrScript.Run(ctx, l.rdb, []string{key}, windowSeconds).Int64()
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("rate limit check %s: %w", key, err)
	}
	return ratelimit.Evaluate(count, requests, nowS, windowSeconds), nil
}
