package analytics_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/analytics"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/store/memory"
)

var testNow = time.Date(2026, 5, 14, 11, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(s *memory.Store) *analytics.Service {
	return analytics.NewService(s.Events(), s.Markets(), discardLogger(),
		analytics.WithClock(func() time.Time { return testNow }))
}

func trade(marketID, trader, cost string, at time.Time) domain.MarketEvent {
	return domain.MarketEvent{
		Type:      domain.EventSharesPurchased,
		MarketID:  marketID,
		Trader:    trader,
		Shares:    decimal.NewFromInt(1),
		Cost:      decimal.RequireFromString(cost),
		Timestamp: at,
	}
}

func market(id string, status domain.MarketStatus) domain.Market {
	return domain.Market{ID: id, Question: "Q " + id, Category: "Test", Status: status}
}

func TestAggregateVolume_HourlyBuckets(t *testing.T) {
	s := memory.New()
	day := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	s.AddEvents(
		trade("m1", "0xa", "100", day.Add(10*time.Hour+5*time.Minute)),
		trade("m1", "0xb", "50", day.Add(10*time.Hour+40*time.Minute)),
		trade("m1", "0xa", "25", day.Add(11*time.Hour+10*time.Minute)),
	)

	svc := newService(s)
	buckets, err := svc.AggregateVolume(context.Background(),
		analytics.ResolveWindow("24h", "hour"), []domain.EventType{domain.EventSharesPurchased})
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, day.Add(10*time.Hour), buckets[0].Start)
	assert.Equal(t, "150", buckets[0].Volume.String())
	assert.Equal(t, int64(2), buckets[0].TradeCount)

	assert.Equal(t, day.Add(11*time.Hour), buckets[1].Start)
	assert.Equal(t, "25", buckets[1].Volume.String())
	assert.Equal(t, int64(1), buckets[1].TradeCount)
}

func TestAggregateVolume_WindowAndTypeFilter(t *testing.T) {
	s := memory.New()
	s.AddEvents(
		trade("m1", "0xa", "10", testNow.Add(-25*time.Hour)),
		trade("m1", "0xa", "20", testNow.Add(-24*time.Hour)),
		trade("m1", "0xa", "30", testNow),
		trade("m1", "0xa", "40", testNow.Add(time.Minute)),
		domain.MarketEvent{Type: domain.EventLiquidityAdded, MarketID: "m1", Cost: decimal.NewFromInt(999), Timestamp: testNow.Add(-time.Hour)},
	)

	buckets, err := newService(s).AggregateVolume(context.Background(),
		analytics.ResolveWindow("24h", "day"), domain.TradeEventTypes)
	require.NoError(t, err)

	total := decimal.Zero
	var count int64
	for _, b := range buckets {
		total = total.Add(b.Volume)
		count += b.TradeCount
	}
	assert.Equal(t, "50", total.String(), "both window bounds are inclusive")
	assert.Equal(t, int64(2), count)
}

func TestAggregateVolume_Idempotent(t *testing.T) {
	s := memory.New()
	for i := 0; i < 20; i++ {
		s.AddEvents(trade("m1", "0xa", "1.25", testNow.Add(-time.Duration(i)*37*time.Minute)))
	}
	svc := newService(s)
	w := analytics.ResolveWindow("24h", "hour")

	first, err := svc.AggregateVolume(context.Background(), w, domain.TradeEventTypes)
	require.NoError(t, err)
	second, err := svc.AggregateVolume(context.Background(), w, domain.TradeEventTypes)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Start.Before(first[i].Start))
	}
}

func TestAggregateVolume_EmptyIsEmptySlice(t *testing.T) {
	buckets, err := newService(memory.New()).AggregateVolume(context.Background(),
		analytics.ResolveWindow("7d", "day"), domain.TradeEventTypes)
	require.NoError(t, err)
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestAggregateTotal_EmptyStore(t *testing.T) {
	since := testNow.Add(-time.Hour)
	for _, s := range []*time.Time{nil, &since} {
		total, err := newService(memory.New()).AggregateTotal(context.Background(), domain.TradeEventTypes, s)
		require.NoError(t, err)
		assert.Equal(t, "0", total.Volume.String())
		assert.Equal(t, int64(0), total.Count)
	}
}

func TestAggregateTotal_Precision(t *testing.T) {
	s := memory.New()
	s.AddEvents(
		trade("m1", "0xa", "0.000000000000000001", testNow),
		trade("m1", "0xa", "123456789012345678901234567890", testNow),
	)
	total, err := newService(s).AggregateTotal(context.Background(), domain.TradeEventTypes, nil)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890.000000000000000001", total.Volume.String())
	assert.Equal(t, int64(2), total.Count)
}

func TestTrending_IncludesIdleActiveMarkets(t *testing.T) {
	s := memory.New()
	s.AddMarket(market("0xaa", domain.MarketStatusActive))
	s.AddMarket(market("0xbb", domain.MarketStatusActive))
	s.AddMarket(market("0xcc", domain.MarketStatusResolved))
	s.AddEvents(
		trade("0xbb", "0x1", "10", testNow.Add(-time.Hour)),
		trade("0xcc", "0x1", "99", testNow.Add(-time.Hour)),
		trade("0xaa", "0x1", "500", testNow.Add(-48*time.Hour)),
	)

	got, err := newService(s).Trending(context.Background(), "24h", 10)
	require.NoError(t, err)
	assert.Equal(t, "24h", got.Timeframe)
	require.Len(t, got.Markets, 2)
	assert.Equal(t, "0xbb", got.Markets[0].MarketID)
	assert.Equal(t, "0xaa", got.Markets[1].MarketID)
	assert.True(t, got.Markets[1].Volume.IsZero())
	assert.Equal(t, int64(0), got.Markets[1].TradeCount)
}

func TestTrending_MixedCaseMarketIDs(t *testing.T) {
	s := memory.New()
	s.AddMarket(market("0xAaBb", domain.MarketStatusActive))
	s.AddEvents(
		trade("0xaabb", "0x1", "4", testNow.Add(-time.Hour)),
		trade("0xAABB", "0x2", "6", testNow.Add(-2*time.Hour)),
	)

	got, err := newService(s).Trending(context.Background(), "24h", 10)
	require.NoError(t, err)
	require.Len(t, got.Markets, 1)
	assert.Equal(t, "0xAaBb", got.Markets[0].MarketID)
	assert.Equal(t, "10", got.Markets[0].Volume.String())
	assert.Equal(t, int64(2), got.Markets[0].TradeCount)
}

func TestMarketHistory_UnknownMarket(t *testing.T) {
	_, err := newService(memory.New()).MarketHistory(context.Background(), "0xdead", "1h", 10)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMarketHistory_FiltersByMarket(t *testing.T) {
	s := memory.New()
	s.AddMarket(market("0xaa", domain.MarketStatusActive))
	s.AddEvents(
		trade("0xaa", "0x1", "5", testNow.Add(-10*time.Minute)),
		trade("0xbb", "0x1", "7", testNow.Add(-10*time.Minute)),
		trade("0xaa", "0x1", "3", testNow.Add(-5*time.Hour)),
	)
	h, err := newService(s).MarketHistory(context.Background(), "0xaa", "1h", 2)
	require.NoError(t, err)
	require.Len(t, h.Data, 1)
	assert.Equal(t, "5", h.Data[0].Volume.String())
}

func TestMarketHistory_LimitsToMostRecentBuckets(t *testing.T) {
	s := memory.New()
	s.AddMarket(market("0xaa", domain.MarketStatusActive))
	day := time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)
	s.AddEvents(
		trade("0xaa", "0x1", "1", day.Add(9*time.Hour+31*time.Minute)),
		trade("0xaa", "0x1", "2", day.Add(10*time.Hour+30*time.Minute)),
		trade("0xaa", "0x1", "4", day.Add(11*time.Hour+29*time.Minute)),
	)

	// testNow is 11:30, mid-bucket.
	h, err := newService(s).MarketHistory(context.Background(), "0xaa", "1h", 2)
	require.NoError(t, err)
	require.Len(t, h.Data, 2)
	assert.Equal(t, day.Add(10*time.Hour), h.Data[0].Start)
	assert.Equal(t, "2", h.Data[0].Volume.String())
	assert.Equal(t, day.Add(11*time.Hour), h.Data[1].Start)
	assert.Equal(t, "4", h.Data[1].Volume.String())
}

type recordingEvents struct {
	domain.EventStore
	queries []domain.SeriesQuery
}

func (r *recordingEvents) VolumeSeries(ctx context.Context, q domain.SeriesQuery) ([]domain.VolumeBucket, error) {
	r.queries = append(r.queries, q)
	return r.EventStore.VolumeSeries(ctx, q)
}

func TestMarketHistory_UsesStoredMarketID(t *testing.T) {
	const stored = "0xAbCdEf0000000000000000000000000000000001"
	s := memory.New()
	s.AddMarket(market(stored, domain.MarketStatusActive))
	s.AddEvents(trade(stored, "0x1", "5", testNow.Add(-10*time.Minute)))

	events := &recordingEvents{EventStore: s.Events()}
	svc := analytics.NewService(events, s.Markets(), discardLogger(),
		analytics.WithClock(func() time.Time { return testNow }))

	h, err := svc.MarketHistory(context.Background(), "0xabcdef0000000000000000000000000000000001", "1h", 4)
	require.NoError(t, err)
	assert.Equal(t, stored, h.MarketID)
	require.Len(t, h.Data, 1)
	require.Len(t, events.queries, 1)
	assert.Equal(t, stored, events.queries[0].MarketID)
}

func TestPlatformStats(t *testing.T) {
	s := memory.New()
	s.AddMarket(market("0xaa", domain.MarketStatusActive))
	s.AddMarket(market("0xbb", domain.MarketStatusActive))
	s.AddMarket(market("0xcc", domain.MarketStatusResolved))
	s.AddEvents(
		trade("0xaa", "0x1", "100", testNow.Add(-72*time.Hour)),
		trade("0xaa", "0x2", "40", testNow.Add(-2*time.Hour)),
		trade("0xbb", "0x1", "10", testNow.Add(-time.Hour)),
	)

	stats, err := newService(s).PlatformStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMarkets)
	assert.Equal(t, int64(2), stats.ActiveMarkets)
	assert.Equal(t, "150", stats.TotalVolume.String())
	assert.Equal(t, int64(3), stats.TotalTrades)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, "50", stats.Last24h.Volume.String())
	assert.Equal(t, int64(2), stats.Last24h.Trades)
	assert.Equal(t, int64(1), stats.Last24h.NewUsers)
}

type failingEvents struct{ domain.EventStore }

func (failingEvents) VolumeSeries(context.Context, domain.SeriesQuery) ([]domain.VolumeBucket, error) {
	return nil, domain.ErrDataAccess
}

func TestAggregateVolume_PropagatesDataAccess(t *testing.T) {
	svc := analytics.NewService(failingEvents{}, memory.New().Markets(), discardLogger())
	_, err := svc.Volume(context.Background(), "24h", "hour")
	assert.ErrorIs(t, err, domain.ErrDataAccess)
}
