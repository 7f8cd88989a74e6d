// Package app provides the top-level application lifecycle management for the
// PulseDelta backend. It wires together all dependencies (stores, caches,
// chain client, archive storage and services) and runs the configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pulsedelta/backend/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It runs the start-up security checks, wires
// all dependencies, selects the operating mode and blocks until the mode
// finishes or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("environment", a.cfg.Environment),
		slog.String("log_level", a.cfg.LogLevel),
	)
	a.logger.DebugContext(ctx, "effective configuration", slog.Any("config", config.RedactedConfig(a.cfg)))

	if err := config.SecurityCheck(a.cfg, a.logger); err != nil {
		if a.cfg.IsProduction() {
			return fmt.Errorf("app: %w", err)
		}
		a.logger.WarnContext(ctx, "security check found problems, continuing outside production",
			slog.String("error", err.Error()),
		)
	}

	mode := strings.ToLower(a.cfg.Mode)
	if mode == "migrate" {
		return a.MigrateMode(ctx)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case "server", "demo":
		return a.ServeMode(ctx, deps)
	case "archive":
		return a.ArchiveMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
