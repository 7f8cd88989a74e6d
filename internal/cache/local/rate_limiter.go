// Package local holds single-process stand-ins for the Redis-backed cache
// components. They are used when Redis is disabled.
package local

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pulsedelta/backend/internal/domain"
)

// sweepEvery is the number of Allow calls between idle-key sweeps.
const sweepEvery = 1024

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// The bucket refills limit tokens per window and holds at most limit, so a
// fresh caller gets the full window allowance at once.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket if one is available.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if limit < 1 || window <= 0 {
		return domain.RateDecision{Allowed: true, Limit: limit}, nil
	}
	now := rl.now()
	every := window / time.Duration(limit)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.calls++
	if rl.calls%sweepEvery == 0 {
		rl.sweep(now, window)
	}

	b, ok := rl.buckets[key]
	if !ok || b.lim.Burst() != limit {
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return domain.RateDecision{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetIn:   delay,
		}, nil
	}

	tokens := b.lim.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetIn:   time.Duration((float64(limit) - tokens) * float64(every)),
	}, nil
}

// sweep drops buckets idle for longer than window; they would be full again.
func (rl *RateLimiter) sweep(now time.Time, window time.Duration) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > window {
			delete(rl.buckets, key)
		}
	}
}
