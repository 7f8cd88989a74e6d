package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
	"github.com/pulsedelta/backend/internal/server/handler"
	"github.com/pulsedelta/backend/internal/server/middleware"
	"github.com/pulsedelta/backend/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	APIVersion   string
	CORSOrigins  []string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MetricsAPIKey protects /metrics. Empty leaves it open.
	MetricsAPIKey string
	// RateLimit applies to /api/ routes when Limiter is set.
	RateLimit middleware.RateLimitConfig
	// RequireWalletAuth rejects comment writes without a wallet token.
	RequireWalletAuth bool
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Users     *handler.UserHandler
	Comments  *handler.CommentHandler
	Analytics *handler.AnalyticsHandler
}

// Deps are the optional collaborators of the middleware chain. Nil fields
// switch the matching feature off.
type Deps struct {
	Limiter domain.RateLimiter
	Tokens  middleware.TokenVerifier
	Metrics *metrics.Metrics
	Hub     *ws.Hub
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and wraps the mux in the middleware chain.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	api := "/api/" + cfg.APIVersion

	// Service info and health (no API prefix, never rate limited).
	mux.HandleFunc("GET /{$}", handlers.Health.Root)
	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /health/detailed", handlers.Health.HealthDetailed)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", middleware.Auth(cfg.MetricsAPIKey)(deps.Metrics.Handler()))
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	// Market endpoints.
	mux.HandleFunc("GET "+api+"/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET "+api+"/markets/{marketId}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET "+api+"/markets/{marketId}/prices", handlers.Markets.GetPrices)
	mux.HandleFunc("GET "+api+"/markets/{marketId}/history", handlers.Markets.GetHistory)
	mux.HandleFunc("GET "+api+"/markets/{marketId}/forecast", handlers.Markets.GetForecast)

	// User endpoints.
	mux.HandleFunc("GET "+api+"/users/{address}", handlers.Users.GetProfile)
	mux.HandleFunc("GET "+api+"/users/{address}/positions", handlers.Users.GetPositions)
	mux.HandleFunc("GET "+api+"/users/{address}/history", handlers.Users.GetHistory)

	// Comment endpoints. Writes pass through wallet auth when tokens are
	// configured.
	walletAuth := func(h http.HandlerFunc) http.Handler { return h }
	if deps.Tokens != nil {
		wa := middleware.WalletAuth(deps.Tokens, cfg.RequireWalletAuth)
		walletAuth = func(h http.HandlerFunc) http.Handler { return wa(h) }
	}
	mux.HandleFunc("GET "+api+"/comments/market/{marketId}", handlers.Comments.ListComments)
	mux.Handle("POST "+api+"/comments", walletAuth(handlers.Comments.CreateComment))
	mux.Handle("DELETE "+api+"/comments/{commentId}", walletAuth(handlers.Comments.DeleteComment))

	// Analytics endpoints.
	mux.HandleFunc("GET "+api+"/analytics/platform", handlers.Analytics.GetPlatformStats)
	mux.HandleFunc("GET "+api+"/analytics/volume", handlers.Analytics.GetVolume)
	mux.HandleFunc("GET "+api+"/analytics/trending", handlers.Analytics.GetTrending)

	// Everything else.
	mux.HandleFunc("/", handlers.Health.NotFound)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Metrics(deps.Metrics)(h)
	h = middleware.BodyLimit(cfg.MaxBodyBytes)(h)
	if deps.Limiter != nil {
		rl := cfg.RateLimit
		if rl.PathPrefix == "" {
			rl.PathPrefix = "/api/"
		}
		h = middleware.RateLimit(deps.Limiter, rl, deps.Metrics, logger)(h)
	}
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Recover(logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
