package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/cache/local"
	"github.com/pulsedelta/backend/internal/config"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
	"github.com/pulsedelta/backend/internal/server/ws"
)

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func demoConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Mode = "demo"
	return &cfg
}

func TestWireDemo(t *testing.T) {
	ctx := context.Background()
	deps, cleanup, err := Wire(ctx, demoConfig(), discard())
	require.NoError(t, err)
	defer cleanup()

	n, err := deps.MarketStore.Count(ctx, domain.MarketFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	assert.IsType(t, &local.RateLimiter{}, deps.RateLimiter)
	assert.IsType(t, &local.Bus{}, deps.SignalBus)
	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.MarketCache)
	assert.Nil(t, deps.Forecaster)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Oracle)
}

func TestArchiveModeRequiresS3(t *testing.T) {
	a := New(demoConfig(), discard())
	err := a.ArchiveMode(context.Background(), &Dependencies{})
	assert.ErrorContains(t, err, "requires s3.enabled")
}

func TestServerOverDemoStore(t *testing.T) {
	ctx := context.Background()
	cfg := demoConfig()
	a := New(cfg, discard())

	deps, cleanup, err := Wire(ctx, cfg, discard())
	require.NoError(t, err)
	defer cleanup()
	// Keep health probes off the network.
	deps.Chain = nil

	m := metrics.New()
	hub := ws.NewHub(deps.SignalBus, discard(), ws.Config{Metrics: m})
	srv := a.newServer(deps, hub, m, time.Now())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	t.Run("detailed health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health/detailed")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Success bool `json:"success"`
			Data    struct {
				Services map[string]string `json:"services"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Equal(t, "healthy", body.Data.Services["database"])
		assert.Equal(t, "not_configured", body.Data.Services["redis"])
	})

	t.Run("market list", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/markets?limit=2")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "100", resp.Header.Get("RateLimit-Limit"))

		var body struct {
			Data       []json.RawMessage `json:"data"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Data, 2)
		assert.Equal(t, 4, body.Pagination.Total)
	})
}
