package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsedelta/backend/internal/domain"
)

// DefaultMarketTTL is used when NewMarketCache is given no TTL.
const DefaultMarketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache. Each market is a hash at
// "market:{id}" whose "data" field holds the JSON encoded market.
type MarketCache struct {
	c   *Client
	ttl time.Duration
}

var _ domain.MarketCache = (*MarketCache)(nil)

// NewMarketCache creates a MarketCache whose entries expire after ttl.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{c: c, ttl: ttl}
}

func (mc *MarketCache) marketKey(id string) string {
	return mc.c.key("market:", id)
}

// Set stores market until the TTL elapses.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	key := mc.marketKey(market.ID)
	pipe := mc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get returns a cached market or domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.c.rdb.HGet(ctx, mc.marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// Invalidate drops a cached market. Missing entries are not an error.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.c.rdb.Del(ctx, mc.marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}
