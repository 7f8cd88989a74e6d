// Package forecast is a client for the AI forecasting service.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
)

// DefaultTimeout bounds one forecast request.
const DefaultTimeout = 30 * time.Second

// Client fetches market forecasts over HTTP. A Client with no base URL is
// disabled and answers every call with domain.ErrServiceDisabled.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a forecast client for the service at baseURL, e.g.
// "http://localhost:5001".
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a service endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// forecastResponse is the service's wire format.
type forecastResponse struct {
	MarketID string `json:"marketId"`
	Forecast []struct {
		Outcome     string  `json:"outcome"`
		Probability float64 `json:"probability"`
		Confidence  float64 `json:"confidence"`
	} `json:"forecast"`
	LastUpdated  *time.Time `json:"lastUpdated"`
	ModelVersion string     `json:"modelVersion"`
}

// Forecast returns the service's forecast for marketID.
func (c *Client) Forecast(ctx context.Context, marketID string) (domain.Forecast, error) {
	if !c.Enabled() {
		return domain.Forecast{}, fmt.Errorf("forecast: %w", domain.ErrServiceDisabled)
	}

	body, err := c.doGet(ctx, "/forecast/"+url.PathEscape(marketID))
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast: get %s: %w: %w", marketID, domain.ErrUpstream, err)
	}

	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast: decode %s: %w: %w", marketID, domain.ErrUpstream, err)
	}

	out := domain.Forecast{
		MarketID:     marketID,
		Outcomes:     make([]domain.OutcomeForecast, 0, len(raw.Forecast)),
		ModelVersion: raw.ModelVersion,
		LastUpdated:  time.Now().UTC(),
	}
	if raw.LastUpdated != nil {
		out.LastUpdated = raw.LastUpdated.UTC()
	}
	for _, f := range raw.Forecast {
		out.Outcomes = append(out.Outcomes, domain.OutcomeForecast{
			Outcome:     f.Outcome,
			Probability: f.Probability,
			Confidence:  f.Confidence,
		})
	}
	return out, nil
}

// Ping checks the service's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("forecast: %w", domain.ErrServiceDisabled)
	}
	if _, err := c.doGet(ctx, "/health"); err != nil {
		return fmt.Errorf("forecast: ping: %w: %w", domain.ErrUpstream, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
