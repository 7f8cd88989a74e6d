package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsedelta/backend/internal/analytics"
	"github.com/pulsedelta/backend/internal/archive"
	"github.com/pulsedelta/backend/internal/auth"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
	"github.com/pulsedelta/backend/internal/server"
	"github.com/pulsedelta/backend/internal/server/handler"
	"github.com/pulsedelta/backend/internal/server/middleware"
	"github.com/pulsedelta/backend/internal/server/ws"
	"github.com/pulsedelta/backend/internal/service"
	"github.com/pulsedelta/backend/internal/store/postgres"
	"github.com/pulsedelta/backend/internal/validate"
)

// ServeMode runs the HTTP API, the WebSocket hub and, when configured, the
// archive scheduler until ctx is cancelled. Demo mode runs the same loop over
// the seeded in-memory store.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode", slog.String("mode", a.cfg.Mode))
	startedAt := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	m := metrics.New()

	if deps.Chain != nil {
		if err := deps.Chain.VerifyNetwork(ctx); err != nil {
			a.logger.WarnContext(ctx, "chain network check failed", slog.String("error", err.Error()))
		}
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(a.cfg.Server.CORSOrigins, r)
		},
		Metrics:   m,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := a.newServer(deps, hub, m, startedAt)
	g.Go(func() error {
		port := a.cfg.Server.Port
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("addr", srv.Addr()),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)),
		)
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if a.cfg.Archive.Enabled {
		if deps.Archiver == nil {
			a.logger.WarnContext(ctx, "archive enabled without s3, scheduler not started")
		} else {
			sched := a.newScheduler(deps, m)
			g.Go(func() error {
				return sched.RunCron(ctx, a.cfg.Archive.Cron)
			})
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MigrateMode applies pending migrations and returns.
func (a *App) MigrateMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting migrate mode")
	client, err := postgres.New(ctx, postgresConfig(a.cfg, a.logger))
	if err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	defer client.Close()

	applied, err := client.RunMigrations(ctx)
	for _, name := range applied {
		a.logger.InfoContext(ctx, "migration applied", slog.String("file", name))
	}
	if err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	a.logger.InfoContext(ctx, "migrations complete", slog.Int("applied", len(applied)))
	return nil
}

// ArchiveMode performs one archive run and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3.enabled")
	}
	res, err := a.newScheduler(deps, nil).Run(ctx)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.logger.InfoContext(ctx, "archive finished",
		slog.String("path", res.Path),
		slog.Int64("count", res.Count),
		slog.Bool("skipped", res.Skipped),
	)
	return nil
}

func (a *App) newScheduler(deps *Dependencies, m *metrics.Metrics) *archive.Scheduler {
	opts := []archive.Option{
		archive.WithMetrics(m),
		archive.WithLockTTL(a.cfg.Archive.LockTTL.Duration),
	}
	if deps.LockManager != nil {
		opts = append(opts, archive.WithLocks(deps.LockManager))
	}
	return archive.NewScheduler(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger, opts...)
}

// newServer builds the services and handlers and mounts them on a server.
func (a *App) newServer(deps *Dependencies, hub *ws.Hub, m *metrics.Metrics, startedAt time.Time) *server.Server {
	cfg := a.cfg
	strict := cfg.Analytics.StrictTokens

	marketSvc := service.NewMarketService(deps.MarketStore, deps.MarketCache, deps.Forecaster, a.logger)
	commentSvc := service.NewCommentService(deps.CommentStore, deps.MarketStore, deps.SignalBus, a.logger)
	userSvc := service.NewUserService(deps.UserStore, a.logger)
	analyticsSvc := analytics.NewService(deps.EventStore, deps.MarketStore, a.logger)

	healthDeps := handler.HealthDeps{
		Database: deps.Database,
		Redis:    deps.Redis,
	}
	if deps.Chain != nil {
		healthDeps.Chain = deps.Chain
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(handler.HealthConfig{
			Environment:   cfg.Environment,
			APIVersion:    cfg.Server.APIVersion,
			OracleEnabled: deps.Oracle != nil,
			AIEnabled:     deps.Forecaster != nil,
			StartedAt:     startedAt,
		}, healthDeps, a.logger),
		Markets: handler.NewMarketHandler(marketSvc, analyticsSvc, strict, a.logger),
		Users:   handler.NewUserHandler(userSvc, a.logger),
		Comments: handler.NewCommentHandler(commentSvc, validate.ContentBounds{
			Min: cfg.Social.CommentMinLength,
			Max: cfg.Social.CommentMaxLength,
		}, a.logger),
		Analytics: handler.NewAnalyticsHandler(analyticsSvc, strict, a.logger),
	}

	var limiter domain.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = deps.RateLimiter
	}

	return server.NewServer(server.Config{
		Port:          cfg.Server.Port,
		APIVersion:    cfg.Server.APIVersion,
		CORSOrigins:   cfg.Server.CORSOrigins,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		ReadTimeout:   cfg.Server.ReadTimeout.Duration,
		WriteTimeout:  cfg.Server.WriteTimeout.Duration,
		MetricsAPIKey: cfg.Server.MetricsAPIKey,
		RateLimit: middleware.RateLimitConfig{
			Limit:      cfg.RateLimit.MaxRequests,
			Window:     cfg.RateLimit.Window.Duration,
			PathPrefix: "/api/",
			TrustProxy: cfg.Server.TrustProxy,
		},
		RequireWalletAuth: cfg.Security.RequireWalletAuth,
	}, handlers, server.Deps{
		Limiter: limiter,
		Tokens:  auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiresIn.Duration),
		Metrics: m,
		Hub:     hub,
	}, a.logger)
}
