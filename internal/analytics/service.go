package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pulsedelta/backend/internal/domain"
)

// VolumeSeries is a bucketed volume time series with the tokens that
// produced it.
type VolumeSeries struct {
	Interval string                `json:"interval"`
	GroupBy  string                `json:"groupBy"`
	Data     []domain.VolumeBucket `json:"data"`
}

// MarketHistory is a bucketed volume series for one market.
type MarketHistory struct {
	MarketID string                `json:"marketId"`
	Interval string                `json:"interval"`
	Data     []domain.VolumeBucket `json:"data"`
}

// Trending is a ranked list of active markets for a timeframe.
type Trending struct {
	Timeframe string                  `json:"timeframe"`
	Markets   []domain.MarketActivity `json:"markets"`
}

// Service answers analytics queries over the event and market stores.
type Service struct {
	events  domain.EventStore
	markets domain.MarketStore
	now     func() time.Time
	logger  *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock used to anchor windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by the given stores.
func NewService(events domain.EventStore, markets domain.MarketStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		events:  events,
		markets: markets,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AggregateVolume sums the cost of events of the given types inside w,
// ending now, grouped into buckets of w.BucketWidth. Buckets are returned in
// ascending order; buckets without events are omitted.
func (s *Service) AggregateVolume(ctx context.Context, w TimeWindow, eventTypes []domain.EventType) ([]domain.VolumeBucket, error) {
	since, until := w.Range(s.now())
	return s.aggregate(ctx, w, since, until, eventTypes, "")
}

func (s *Service) aggregate(ctx context.Context, w TimeWindow, since, until time.Time, eventTypes []domain.EventType, marketID string) ([]domain.VolumeBucket, error) {
	buckets, err := s.events.VolumeSeries(ctx, domain.SeriesQuery{
		EventTypes:  eventTypes,
		MarketID:    marketID,
		Since:       since,
		Until:       until,
		BucketWidth: w.BucketWidth,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: aggregate volume: %w", err)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	if buckets == nil {
		buckets = []domain.VolumeBucket{}
	}
	return buckets, nil
}

// AggregateTotal sums the cost and counts events of the given types since
// the given instant, or over all time when since is nil. An empty store
// yields a zero volume and count.
func (s *Service) AggregateTotal(ctx context.Context, eventTypes []domain.EventType, since *time.Time) (domain.VolumeTotal, error) {
	total, err := s.events.VolumeTotal(ctx, domain.TotalQuery{
		EventTypes: eventTypes,
		Since:      since,
	})
	if err != nil {
		return domain.VolumeTotal{}, fmt.Errorf("analytics: aggregate total: %w", err)
	}
	return total, nil
}

// Volume resolves the interval and groupBy tokens and returns the trade
// volume series for that window.
func (s *Service) Volume(ctx context.Context, interval, groupBy string) (VolumeSeries, error) {
	w := ResolveWindow(interval, groupBy)
	data, err := s.AggregateVolume(ctx, w, domain.TradeEventTypes)
	if err != nil {
		return VolumeSeries{}, err
	}
	return VolumeSeries{
		Interval: w.Interval,
		GroupBy:  w.GroupBy,
		Data:     data,
	}, nil
}

// RankTrending ranks active markets by activity inside w and returns the
// first limit entries.
func (s *Service) RankTrending(ctx context.Context, w TimeWindow, limit int) ([]domain.MarketActivity, error) {
	since, until := w.Range(s.now())
	activity, err := s.events.MarketActivity(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("analytics: market activity: %w", err)
	}
	return RankTrending(activity, limit), nil
}

// Trending resolves the timeframe token and ranks active markets.
func (s *Service) Trending(ctx context.Context, timeframe string, limit int) (Trending, error) {
	w := ResolveTimeframe(timeframe)
	ranked, err := s.RankTrending(ctx, w, limit)
	if err != nil {
		return Trending{}, err
	}
	return Trending{Timeframe: w.Interval, Markets: ranked}, nil
}

// MarketHistory returns the most recent points buckets of trade volume for
// a single market. It returns domain.ErrNotFound for unknown markets.
func (s *Service) MarketHistory(ctx context.Context, marketID, interval string, points int) (MarketHistory, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return MarketHistory{}, fmt.Errorf("analytics: market history %s: %w", marketID, err)
	}
	w := ResolveHistory(interval, points)
	since, until := w.AlignedRange(s.now())
	// Events are keyed by the stored id, whatever case the caller used.
	data, err := s.aggregate(ctx, w, since, until, domain.TradeEventTypes, m.ID)
	if err != nil {
		return MarketHistory{}, err
	}
	return MarketHistory{MarketID: m.ID, Interval: w.Interval, Data: data}, nil
}

// PlatformStats gathers the platform headline numbers. The underlying
// queries run concurrently and are not a single consistent snapshot.
func (s *Service) PlatformStats(ctx context.Context) (domain.PlatformStats, error) {
	since := s.now().Add(-day)

	var (
		byStatus   map[domain.MarketStatus]int64
		allTime    domain.VolumeTotal
		recent     domain.VolumeTotal
		traders    int64
		newTraders int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byStatus, err = s.markets.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		allTime, err = s.AggregateTotal(gctx, domain.TradeEventTypes, nil)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.AggregateTotal(gctx, domain.TradeEventTypes, &since)
		return err
	})
	g.Go(func() error {
		var err error
		traders, err = s.events.CountTraders(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		newTraders, err = s.events.CountNewTraders(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PlatformStats{}, fmt.Errorf("analytics: platform stats: %w", err)
	}

	var totalMarkets int64
	for _, n := range byStatus {
		totalMarkets += n
	}

	return domain.PlatformStats{
		TotalMarkets:  totalMarkets,
		ActiveMarkets: byStatus[domain.MarketStatusActive],
		TotalVolume:   orZero(allTime.Volume),
		TotalUsers:    traders,
		TotalTrades:   allTime.Count,
		Last24h: domain.WindowStats{
			Volume:   orZero(recent.Volume),
			Trades:   recent.Count,
			NewUsers: newTraders,
		},
	}, nil
}

// orZero normalises a zero-value decimal so it renders as "0".
func orZero(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return d
}
