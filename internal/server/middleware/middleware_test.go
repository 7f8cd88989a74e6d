package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/auth"
	"github.com/pulsedelta/backend/internal/cache/local"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
)

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)

	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID()(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew?cup=1", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "/brew", line["path"])
	assert.Equal(t, "cup=1", line["query"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
	assert.NotEmpty(t, line["request_id"])
}

func TestRecover(t *testing.T) {
	t.Run("computation error", func(t *testing.T) {
		h := Recover(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(&domain.ComputationError{Op: "paginate", Reason: "limit must be at least 1"})
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decode(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, "Internal server error", env.Message)
	})

	t.Run("arbitrary panic", func(t *testing.T) {
		h := Recover(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest(http.MethodOptions, "/api/v1/comments", nil)
	pre.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOriginAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, OriginAllowed([]string{"https://a"}, req))

	req.Header.Set("Origin", "https://b")
	assert.False(t, OriginAllowed([]string{"https://a"}, req))
	assert.True(t, OriginAllowed([]string{"*"}, req))
	assert.True(t, OriginAllowed(nil, req))
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	h := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))

	var maxErr *http.MaxBytesError
	assert.True(t, errors.As(readErr, &maxErr))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateDecision, error) {
	return domain.RateDecision{}, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	cfg := RateLimitConfig{Limit: 2, Window: time.Minute, PathPrefix: "/api/"}
	m := metrics.New()
	h := RateLimit(local.NewRateLimiter(), cfg, m, discard())(okHandler)

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := call("/api/v1/markets")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, call("/api/v1/markets").Code)

	rec = call("/api/v1/markets")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, RateLimitMessage, env.Message)

	// Paths outside the prefix are never limited.
	rec = call("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := RateLimit(failingLimiter{}, RateLimitConfig{Limit: 1, Window: time.Minute}, nil, discard())(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/markets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "10.0.0.9", ClientIP(req, false))
	assert.Equal(t, "203.0.113.7", ClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(req, true))
}

func TestAuth(t *testing.T) {
	h := Auth("s3cret")(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Auth("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWalletAuth(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Issue("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	var wallet string
	var bound bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, bound = WalletFrom(r.Context())
	})

	serve := func(required bool, header string) int {
		wallet, bound = "", false
		req := httptest.NewRequest(http.MethodPost, "/api/v1/comments", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		WalletAuth(tokens, required)(inner).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(false, ""))
	assert.False(t, bound)

	assert.Equal(t, http.StatusUnauthorized, serve(true, ""))

	assert.Equal(t, http.StatusOK, serve(true, "Bearer "+token))
	assert.True(t, bound)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", wallet)

	assert.Equal(t, http.StatusUnauthorized, serve(false, "Bearer nonsense"))
}

func TestMetrics_RouteLabel(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/markets/{marketId}", okHandler)
	h := Metrics(m)(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/markets/0xabc", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `pulsedelta_http_requests_total{method="GET",route="GET /api/v1/markets/{marketId}",status="200"} 1`)
	assert.Contains(t, body, `route="unmatched",status="404"`)
}
