// Package archive schedules exports of old market events to cold storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
)

// lockKey serialises archive runs across replicas.
const lockKey = "archive:market_events"

// Scheduler runs the event archiver once or on a cron schedule.
type Scheduler struct {
	archiver  domain.Archiver
	locks     domain.LockManager
	metrics   *metrics.Metrics
	retention time.Duration
	lockTTL   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocks makes runs take a distributed lock first. Without it every
// replica archives on its own.
func WithLocks(l domain.LockManager) Option {
	return func(s *Scheduler) { s.locks = l }
}

// WithMetrics records the outcome of every run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLockTTL bounds how long one run may hold the lock.
func WithLockTTL(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler archiving events older than
// retentionDays.
func NewScheduler(archiver domain.Archiver, retentionDays int, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		archiver:  archiver,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		lockTTL:   30 * time.Minute,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archive")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cutoff returns the instant before which events are archived. It is aligned
// to the start of the UTC day so repeated runs on one day share a target.
func (s *Scheduler) Cutoff() time.Time {
	return s.now().UTC().Add(-s.retention).Truncate(24 * time.Hour)
}

// Run performs one archive pass. A run that finds the lock taken returns
// nil without archiving.
func (s *Scheduler) Run(ctx context.Context) (domain.ArchiveResult, error) {
	cutoff := s.Cutoff()
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, lockKey, s.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.InfoContext(ctx, "archive: run already in progress elsewhere")
			s.metrics.ArchiveRun("locked", 0)
			return domain.ArchiveResult{Before: cutoff, Skipped: true}, nil
		}
		if err != nil {
			return domain.ArchiveResult{}, fmt.Errorf("archive: lock: %w", err)
		}
		defer unlock()
	}

	s.logger.InfoContext(ctx, "archive: run started", slog.Time("cutoff", cutoff))
	start := time.Now()
	res, err := s.archiver.ArchiveEvents(ctx, cutoff)
	if err != nil {
		s.metrics.ArchiveRun("error", 0)
		return res, fmt.Errorf("archive: events before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	s.logger.InfoContext(ctx, "archive: run complete",
		slog.String("path", res.Path),
		slog.Int64("count", res.Count),
		slog.Bool("skipped", res.Skipped),
		slog.Duration("duration", time.Since(start)),
	)
	if res.Skipped {
		s.metrics.ArchiveRun("skipped", 0)
	} else {
		s.metrics.ArchiveRun("ok", res.Count)
	}
	return res, nil
}

// RunCron runs the archiver on a standard five-field cron schedule in UTC
// until ctx is cancelled. Failed runs are logged and retried at the next
// tick.
func (s *Scheduler) RunCron(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			s.logger.ErrorContext(ctx, "archive: run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("archive: parse schedule %q: %w", spec, err)
	}

	s.logger.InfoContext(ctx, "archive: scheduler started", slog.String("schedule", spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.InfoContext(context.WithoutCancel(ctx), "archive: scheduler stopped")
	return ctx.Err()
}

// ValidateSchedule reports whether spec is a valid five-field cron
// expression.
func ValidateSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
