package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
)

// Forecaster fetches AI forecasts for a market.
type Forecaster interface {
	Forecast(ctx context.Context, marketID string) (domain.Forecast, error)
}

// MarketService serves market listings, details, prices and forecasts.
type MarketService struct {
	markets    domain.MarketStore
	cache      domain.MarketCache
	forecaster Forecaster
	now        func() time.Time
	logger     *slog.Logger
}

// NewMarketService creates a MarketService. cache and forecaster may be nil;
// without a forecaster every forecast request fails with
// domain.ErrServiceDisabled.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	forecaster Forecaster,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:    markets,
		cache:      cache,
		forecaster: forecaster,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// List returns one page of markets matching filter and the total number of
// matches.
func (s *MarketService) List(ctx context.Context, filter domain.MarketFilter, opts domain.ListOpts) ([]domain.Market, int64, error) {
	markets, err := s.markets.List(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: list: %w", err)
	}
	total, err := s.markets.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: count: %w", err)
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	return markets, total, nil
}

// Get retrieves a market by address, checking the cache first and falling
// back to the store on a miss.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: cache set failed",
				slog.String("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return m, nil
}

// Prices returns the current price of every outcome of a market.
func (s *MarketService) Prices(ctx context.Context, id string) (domain.MarketPrices, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return domain.MarketPrices{}, err
	}
	out := domain.MarketPrices{
		MarketID:  m.ID,
		Outcomes:  make([]domain.OutcomePrice, 0, len(m.Outcomes)),
		Timestamp: s.now(),
	}
	for _, o := range m.Outcomes {
		out.Outcomes = append(out.Outcomes, domain.OutcomePrice{ID: o.ID, Name: o.Name, Price: o.Price})
	}
	return out, nil
}

// Forecast returns the AI forecast of a known market.
func (s *MarketService) Forecast(ctx context.Context, id string) (domain.Forecast, error) {
	if s.forecaster == nil {
		return domain.Forecast{}, fmt.Errorf("market_service: forecast: %w", domain.ErrServiceDisabled)
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return domain.Forecast{}, err
	}
	f, err := s.forecaster.Forecast(ctx, m.ID)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("market_service: forecast %q: %w", m.ID, err)
	}
	return f, nil
}
