package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/store/memory"
)

var (
	now      = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	market1  = "0x0000000000000000000000000000000000000001"
	market2  = "0x0000000000000000000000000000000000000002"
	trader1  = "0x1111111111111111111111111111111111111111"
	stranger = "0x9999999999999999999999999999999999999999"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	memory.Seed(s, now)
	s.SetClock(func() time.Time { return now })
	return s
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]domain.Market
	gets   int
	hits   int
	setErr error
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]domain.Market)} }

func (c *fakeCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[m.ID] = m
	return nil
}

func (c *fakeCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	m, ok := c.data[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	c.hits++
	return m, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return b.err
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan domain.Message, error) {
	return nil, errors.New("not supported")
}

type fakeForecaster struct {
	got string
	err error
}

func (f *fakeForecaster) Forecast(_ context.Context, marketID string) (domain.Forecast, error) {
	f.got = marketID
	if f.err != nil {
		return domain.Forecast{}, f.err
	}
	return domain.Forecast{
		MarketID: marketID,
		Outcomes: []domain.OutcomeForecast{{Outcome: "Yes", Probability: 0.6, Confidence: 0.75}},
	}, nil
}

// ---------------------------------------------------------------------------
// MarketService
// ---------------------------------------------------------------------------

func TestMarketServiceList(t *testing.T) {
	st := seeded(t)
	svc := NewMarketService(st.Markets(), nil, nil, testLogger())

	markets, total, err := svc.List(context.Background(),
		domain.MarketFilter{Status: domain.MarketStatusActive}, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, markets, 2)
	assert.True(t, markets[0].CreatedAt.After(markets[1].CreatedAt))

	markets, total, err = svc.List(context.Background(),
		domain.MarketFilter{Category: "nope"}, domain.ListOpts{Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, markets)
	assert.Empty(t, markets)
}

func TestMarketServiceGetUsesCache(t *testing.T) {
	st := seeded(t)
	cache := newFakeCache()
	svc := NewMarketService(st.Markets(), cache, nil, testLogger())

	m, err := svc.Get(context.Background(), market1)
	require.NoError(t, err)
	assert.Equal(t, market1, m.ID)
	assert.Zero(t, cache.hits)

	_, err = svc.Get(context.Background(), market1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestMarketServiceGetCacheWriteFailureIsIgnored(t *testing.T) {
	st := seeded(t)
	cache := newFakeCache()
	cache.setErr = errors.New("redis down")
	svc := NewMarketService(st.Markets(), cache, nil, testLogger())

	m, err := svc.Get(context.Background(), market1)
	require.NoError(t, err)
	assert.Equal(t, market1, m.ID)
}

func TestMarketServiceGetNotFound(t *testing.T) {
	svc := NewMarketService(seeded(t).Markets(), nil, nil, testLogger())
	_, err := svc.Get(context.Background(), stranger)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketServicePrices(t *testing.T) {
	svc := NewMarketService(seeded(t).Markets(), nil, nil, testLogger())
	svc.now = func() time.Time { return now }

	p, err := svc.Prices(context.Background(), market1)
	require.NoError(t, err)
	assert.Equal(t, market1, p.MarketID)
	assert.Equal(t, now, p.Timestamp)
	require.Len(t, p.Outcomes, 2)
	assert.Equal(t, "Yes", p.Outcomes[0].Name)
	assert.True(t, p.Outcomes[0].Price.Equal(decimal.RequireFromString("0.65")))
}

func TestMarketServiceForecast(t *testing.T) {
	st := seeded(t)

	t.Run("disabled", func(t *testing.T) {
		svc := NewMarketService(st.Markets(), nil, nil, testLogger())
		_, err := svc.Forecast(context.Background(), market1)
		assert.ErrorIs(t, err, domain.ErrServiceDisabled)
	})

	t.Run("unknown market", func(t *testing.T) {
		f := &fakeForecaster{}
		svc := NewMarketService(st.Markets(), nil, f, testLogger())
		_, err := svc.Forecast(context.Background(), stranger)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, f.got)
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := &fakeForecaster{err: domain.ErrUpstream}
		svc := NewMarketService(st.Markets(), nil, f, testLogger())
		_, err := svc.Forecast(context.Background(), market1)
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})

	t.Run("ok", func(t *testing.T) {
		f := &fakeForecaster{}
		svc := NewMarketService(st.Markets(), nil, f, testLogger())
		got, err := svc.Forecast(context.Background(), market1)
		require.NoError(t, err)
		assert.Equal(t, market1, f.got)
		assert.Equal(t, market1, got.MarketID)
	})
}

// ---------------------------------------------------------------------------
// CommentService
// ---------------------------------------------------------------------------

func TestCommentServiceCreate(t *testing.T) {
	st := seeded(t)
	bus := &fakeBus{}
	svc := NewCommentService(st.Comments(), st.Markets(), bus, testLogger())

	c, err := svc.Create(context.Background(), domain.NewComment{
		MarketID: market1,
		Author:   trader1,
		Content:  "Looks likely to me.",
	})
	require.NoError(t, err)
	assert.Positive(t, c.ID)
	assert.Equal(t, now, c.CreatedAt)

	require.Len(t, bus.channels, 1)
	assert.Equal(t, "comments:"+market1, bus.channels[0])

	var ev domain.CommentEvent
	require.NoError(t, json.Unmarshal(bus.payloads[0], &ev))
	assert.Equal(t, CommentCreated, ev.Type)
	assert.Equal(t, c.ID, ev.Comment.ID)
}

func TestCommentServiceCreateUnknownMarket(t *testing.T) {
	st := seeded(t)
	bus := &fakeBus{}
	svc := NewCommentService(st.Comments(), st.Markets(), bus, testLogger())

	_, err := svc.Create(context.Background(), domain.NewComment{
		MarketID: stranger,
		Author:   trader1,
		Content:  "hello there",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, bus.channels)
}

func TestCommentServiceCreateReply(t *testing.T) {
	st := seeded(t)
	svc := NewCommentService(st.Comments(), st.Markets(), nil, testLogger())
	ctx := context.Background()

	parent, err := svc.Create(ctx, domain.NewComment{MarketID: market1, Author: trader1, Content: "parent"})
	require.NoError(t, err)

	reply, err := svc.Create(ctx, domain.NewComment{MarketID: market1, Author: stranger, Content: "reply", ParentID: &parent.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	_, err = svc.Create(ctx, domain.NewComment{MarketID: market2, Author: stranger, Content: "wrong market", ParentID: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	missing := int64(9999)
	_, err = svc.Create(ctx, domain.NewComment{MarketID: market1, Author: stranger, Content: "orphan", ParentID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCommentServicePublishFailureIsIgnored(t *testing.T) {
	st := seeded(t)
	bus := &fakeBus{err: errors.New("redis down")}
	svc := NewCommentService(st.Comments(), st.Markets(), bus, testLogger())

	_, err := svc.Create(context.Background(), domain.NewComment{MarketID: market1, Author: trader1, Content: "still saved"})
	require.NoError(t, err)
}

func TestCommentServiceList(t *testing.T) {
	st := seeded(t)
	svc := NewCommentService(st.Comments(), st.Markets(), nil, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, domain.NewComment{MarketID: market1, Author: trader1, Content: "more thoughts"})
		require.NoError(t, err)
	}

	comments, total, err := svc.List(ctx, market1, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, comments, 2)
	assert.Greater(t, comments[0].ID, comments[1].ID)

	comments, total, err = svc.List(ctx, stranger, domain.ListOpts{Limit: 50})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, comments)
}

func TestCommentServiceDelete(t *testing.T) {
	st := seeded(t)
	bus := &fakeBus{}
	svc := NewCommentService(st.Comments(), st.Markets(), bus, testLogger())
	ctx := context.Background()

	c, err := svc.Create(ctx, domain.NewComment{MarketID: market1, Author: trader1, Content: "to be removed"})
	require.NoError(t, err)

	err = svc.Delete(ctx, c.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, c.ID, strings.ToUpper(trader1)))
	require.Len(t, bus.channels, 2)

	var ev domain.CommentEvent
	require.NoError(t, json.Unmarshal(bus.payloads[1], &ev))
	assert.Equal(t, CommentDeleted, ev.Type)

	err = svc.Delete(ctx, c.ID, trader1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// UserService
// ---------------------------------------------------------------------------

func TestUserService(t *testing.T) {
	st := seeded(t)
	svc := NewUserService(st.Users(), testLogger())
	ctx := context.Background()

	p, err := svc.Profile(ctx, trader1)
	require.NoError(t, err)
	assert.Equal(t, int64(16), p.TradeCount)
	assert.Equal(t, int64(1), p.CommentCount)
	require.NotNil(t, p.JoinedAt)

	positions, err := svc.Positions(ctx, trader1)
	require.NoError(t, err)
	for _, pos := range positions {
		assert.True(t, pos.Shares.IsPositive())
		assert.True(t, pos.CurrentValue.Equal(pos.Shares.Mul(pos.Price)))
	}

	trades, total, err := svc.History(ctx, trader1, domain.ListOpts{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(16), total)
	require.Len(t, trades, 5)
	assert.False(t, trades[0].Timestamp.Before(trades[1].Timestamp))

	_, err = svc.Profile(ctx, stranger)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	positions, err = svc.Positions(ctx, stranger)
	require.NoError(t, err)
	assert.NotNil(t, positions)
	assert.Empty(t, positions)
}
