package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter decides whether a keyed caller may proceed. Every allowed
// call counts towards the limit.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
}

// RateDecision is the outcome of one rate limit check.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is the time until the oldest counted call leaves the window.
	ResetIn time.Duration
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub messaging.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
}

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}
