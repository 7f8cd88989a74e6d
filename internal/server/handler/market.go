package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pulsedelta/backend/internal/analytics"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/server/response"
	"github.com/pulsedelta/backend/internal/validate"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	List(ctx context.Context, filter domain.MarketFilter, opts domain.ListOpts) ([]domain.Market, int64, error)
	Get(ctx context.Context, id string) (domain.Market, error)
	Prices(ctx context.Context, id string) (domain.MarketPrices, error)
	Forecast(ctx context.Context, id string) (domain.Forecast, error)
}

// MarketHistorian builds per-market volume history.
type MarketHistorian interface {
	MarketHistory(ctx context.Context, marketID, interval string, points int) (analytics.MarketHistory, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	history MarketHistorian
	strict  bool
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. With strictTokens set, unknown
// history intervals are rejected instead of falling back to the default.
func NewMarketHandler(markets MarketService, history MarketHistorian, strictTokens bool, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		history: history,
		strict:  strictTokens,
		logger:  logger,
	}
}

// ListMarkets returns one page of markets.
// GET /api/v1/markets?page=1&limit=20&status=active&category=crypto
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	p, err := validate.MarketList(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "list markets")
		return
	}

	markets, total, err := h.markets.List(r.Context(), p.Filter, listOpts(p.Page))
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "list markets")
		return
	}
	response.Paginated(w, markets, p.Page.Page, p.Page.Limit, total, "Markets retrieved successfully")
}

// GetMarket returns a single market by its address.
// GET /api/v1/markets/{marketId}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := validate.MarketID(pathParam(r, "marketId"))
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get market")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get market")
		return
	}
	response.Success(w, http.StatusOK, market, "Market retrieved successfully")
}

// GetPrices returns the current outcome prices of a market.
// GET /api/v1/markets/{marketId}/prices
func (h *MarketHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	id, err := validate.MarketID(pathParam(r, "marketId"))
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get prices")
		return
	}

	prices, err := h.markets.Prices(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get prices")
		return
	}
	response.Success(w, http.StatusOK, prices, "Prices retrieved successfully")
}

// GetHistory returns bucketed trade volume for a market.
// GET /api/v1/markets/{marketId}/history?interval=1h&limit=100
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	p, err := validate.MarketHistory(pathParam(r, "marketId"), r.URL.Query(), h.strict)
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get market history")
		return
	}

	hist, err := h.history.MarketHistory(r.Context(), p.MarketID, p.Interval, p.Limit)
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get market history")
		return
	}
	response.Success(w, http.StatusOK, hist, "Historical data retrieved successfully")
}

// GetForecast proxies the AI forecast for a market.
// GET /api/v1/markets/{marketId}/forecast
func (h *MarketHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	id, err := validate.MarketID(pathParam(r, "marketId"))
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get forecast")
		return
	}

	fc, err := h.markets.Forecast(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err, "Market", "get forecast")
		return
	}
	response.Success(w, http.StatusOK, fc, "AI forecast retrieved successfully")
}
