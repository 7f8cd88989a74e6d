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

// AnalyticsService answers the platform-wide analytics queries.
type AnalyticsService interface {
	PlatformStats(ctx context.Context) (domain.PlatformStats, error)
	Volume(ctx context.Context, interval, groupBy string) (analytics.VolumeSeries, error)
	Trending(ctx context.Context, timeframe string, limit int) (analytics.Trending, error)
}

// AnalyticsHandler serves the analytics endpoints.
type AnalyticsHandler struct {
	analytics AnalyticsService
	strict    bool
	logger    *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler. With strictTokens set,
// unknown interval, groupBy and timeframe tokens are rejected instead of
// replaced by their defaults.
func NewAnalyticsHandler(svc AnalyticsService, strictTokens bool, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc, strict: strictTokens, logger: logger}
}

// GetPlatformStats returns the platform headline numbers.
// GET /api/v1/analytics/platform
func (h *AnalyticsHandler) GetPlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.PlatformStats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, "Statistics", "get platform statistics")
		return
	}
	response.Success(w, http.StatusOK, stats, "Platform statistics retrieved successfully")
}

// GetVolume returns the bucketed trade volume series.
// GET /api/v1/analytics/volume?interval=24h&groupBy=hour
func (h *AnalyticsHandler) GetVolume(w http.ResponseWriter, r *http.Request) {
	p, err := validate.VolumeQuery(r.URL.Query(), h.strict)
	if err != nil {
		writeError(w, r, h.logger, err, "Volume", "get volume data")
		return
	}

	series, err := h.analytics.Volume(r.Context(), p.Interval, p.GroupBy)
	if err != nil {
		writeError(w, r, h.logger, err, "Volume", "get volume data")
		return
	}
	response.Success(w, http.StatusOK, series, "Volume data retrieved successfully")
}

// GetTrending returns the most active markets for a timeframe.
// GET /api/v1/analytics/trending?limit=10&timeframe=24h
func (h *AnalyticsHandler) GetTrending(w http.ResponseWriter, r *http.Request) {
	p, err := validate.TrendingQuery(r.URL.Query(), h.strict)
	if err != nil {
		writeError(w, r, h.logger, err, "Trending", "get trending markets")
		return
	}

	trending, err := h.analytics.Trending(r.Context(), p.Timeframe, p.Limit)
	if err != nil {
		writeError(w, r, h.logger, err, "Trending", "get trending markets")
		return
	}
	response.Success(w, http.StatusOK, trending, "Trending markets retrieved successfully")
}
