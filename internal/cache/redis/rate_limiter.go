package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pulsedelta/backend/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter implements domain.RateLimiter with a sliding window kept in a
// sorted set per key and updated atomically by a Lua script. Every API
// replica sharing the Redis instance sees the same counts.
type RateLimiter struct {
	c             *Client
	slidingWindow *redis.Script
	now           func() time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter backed by c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		c:             c,
		slidingWindow: redis.NewScript(slidingWindowLua),
		now:           time.Now,
	}
}

// Allow counts one call for key and reports whether it fits in limit calls
// per window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	now := rl.now().UnixMicro()
	win := window.Microseconds()
	ttl := window.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	res, err := rl.slidingWindow.Run(ctx, rl.c.rdb,
		[]string{rl.c.key("ratelimit:", key)},
		strconv.FormatInt(now, 10),
		strconv.FormatInt(win, 10),
		strconv.Itoa(limit),
		uuid.NewString(),
		strconv.FormatInt(now-win, 10),
		strconv.FormatInt(ttl, 10),
	).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: unexpected result length %d", key, len(res))
	}

	remaining := limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetIn:   time.Duration(res[2]) * time.Microsecond,
	}, nil
}
