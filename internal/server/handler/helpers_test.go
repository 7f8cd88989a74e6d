package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/domain"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		logged  bool
	}{
		{"validation", &domain.ValidationError{Violations: []domain.FieldViolation{{Field: "limit", Message: "bad"}}},
			http.StatusBadRequest, "Validation failed", false},
		{"not found", fmt.Errorf("market_service: get: %w", domain.ErrNotFound), http.StatusNotFound, "Market not found", false},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, msgForbidden, false},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, msgUnauthorized, false},
		{"conflict", domain.ErrAlreadyExists, http.StatusConflict, msgConflict, false},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, msgRateLimited, false},
		{"disabled", fmt.Errorf("forecast: %w", domain.ErrServiceDisabled), http.StatusServiceUnavailable, msgUnavailable, false},
		{"upstream", fmt.Errorf("forecast: get x: %w: %w", domain.ErrUpstream, errors.New("HTTP 500")), http.StatusBadGateway, msgUpstream, true},
		{"data access", fmt.Errorf("postgres: list markets: %w: %w", domain.ErrDataAccess, errors.New(`relation "markets" does not exist`)),
			http.StatusInternalServerError, "failed to list markets", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, nil))
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/markets", nil)

			writeError(rec, req, logger, tt.err, "Market", "list markets")

			assert.Equal(t, tt.status, rec.Code)
			var body struct {
				Success bool             `json:"success"`
				Message string           `json:"message"`
				Errors  []map[string]any `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
			// Internal causes never reach the caller.
			assert.NotContains(t, rec.Body.String(), "relation")
			assert.Equal(t, tt.logged, logs.Len() > 0)
		})
	}
}

func TestDecodeBody(t *testing.T) {
	t.Run("object keeps numbers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"parentCommentId": 12}`))
		body, err := decodeBody(req)
		require.NoError(t, err)
		assert.Equal(t, json.Number("12"), body["parentCommentId"])
	})

	t.Run("empty body", func(t *testing.T) {
		body, err := decodeBody(httptest.NewRequest(http.MethodDelete, "/", nil))
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("not an object", func(t *testing.T) {
		for _, raw := range []string{`[1,2]`, `"text"`, `null`, `{"a":`} {
			_, err := decodeBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw)))
			var be *errBody
			require.True(t, errors.As(err, &be), raw)
			assert.Equal(t, http.StatusBadRequest, be.status, raw)
		}
	})

	t.Run("too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"`+strings.Repeat("x", 64)+`"}`))
		req.Body = http.MaxBytesReader(rec, req.Body, 16)
		_, err := decodeBody(req)
		var be *errBody
		require.True(t, errors.As(err, &be))
		assert.Equal(t, http.StatusRequestEntityTooLarge, be.status)
	})
}

func TestRootIsNotEnveloped(t *testing.T) {
	h := NewHealthHandler(HealthConfig{APIVersion: "v2"}, HealthDeps{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	h.Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v2", body["version"])
	assert.NotContains(t, body, "success")
}
