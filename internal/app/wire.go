package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/pulsedelta/backend/internal/blob/s3"
	"github.com/pulsedelta/backend/internal/cache/local"
	"github.com/pulsedelta/backend/internal/cache/redis"
	"github.com/pulsedelta/backend/internal/chain"
	"github.com/pulsedelta/backend/internal/config"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/forecast"
	"github.com/pulsedelta/backend/internal/service"
	"github.com/pulsedelta/backend/internal/store/memory"
	"github.com/pulsedelta/backend/internal/store/postgres"
	"github.com/pulsedelta/backend/internal/wallet"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	MarketStore  domain.MarketStore
	EventStore   domain.EventStore
	CommentStore domain.CommentStore
	UserStore    domain.UserStore
	Database     domain.Pinger

	// Caches. MarketCache and LockManager stay nil without Redis.
	Redis       domain.Pinger
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// External services
	Chain      *chain.Client
	Forecaster service.Forecaster
	Oracle     *wallet.Oracle

	// Archiver is nil unless S3 is enabled.
	Archiver domain.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Stores ---
	if cfg.NeedsDatabase() {
		pgClient, err := postgres.New(ctx, postgresConfig(cfg, logger))
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			applied, err := pgClient.RunMigrations(ctx)
			if err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
			if len(applied) > 0 {
				logger.InfoContext(ctx, "wire: migrations applied", slog.Any("files", applied))
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.EventStore = postgres.NewEventStore(pool)
		deps.CommentStore = postgres.NewCommentStore(pool)
		deps.UserStore = postgres.NewUserStore(pool)
		deps.Database = pgClient
	} else {
		store := memory.New()
		memory.Seed(store, time.Now().UTC())
		deps.MarketStore = store.Markets()
		deps.EventStore = store.Events()
		deps.CommentStore = store.Comments()
		deps.UserStore = store.Users()
		deps.Database = store
		logger.InfoContext(ctx, "wire: using seeded in-memory store")
	}

	// --- Redis, or in-process stand-ins ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.MarketTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.RateLimiter = local.NewRateLimiter()
		deps.SignalBus = local.NewBus()
	}

	// --- Chain (optional: a dead RPC endpoint only degrades health) ---
	chainClient, err := chain.Dial(ctx, chain.Config{
		RPCURL:  cfg.Blockchain.RPCURL,
		ChainID: cfg.Blockchain.ChainID,
		Network: cfg.Blockchain.Network,
		Timeout: cfg.Blockchain.Timeout.Duration,
	}, logger)
	if err != nil {
		logger.WarnContext(ctx, "wire: chain client unavailable", slog.String("error", err.Error()))
	} else {
		closers = append(closers, chainClient.Close)
		deps.Chain = chainClient
	}

	// --- Oracle identity ---
	if cfg.Oracle.Enabled {
		oracle, err := wallet.LoadOracle(wallet.KeySource{
			RawKey:   cfg.Oracle.PrivateKey,
			KeyFile:  cfg.Oracle.EncryptedKeyPath,
			Password: cfg.Oracle.KeyPassword,
		}, cfg.Oracle.Address)
		if err != nil {
			return fail(fmt.Errorf("wire: oracle: %w", err))
		}
		deps.Oracle = &oracle
		logger.InfoContext(ctx, "wire: oracle loaded", slog.String("address", oracle.Address.Hex()))
	}

	// --- Forecast service ---
	if cfg.AI.Enabled {
		deps.Forecaster = forecast.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey,
			forecast.WithTimeout(cfg.AI.Timeout.Duration))
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewEventArchiver(
			s3blob.NewWriter(s3Client),
			deps.EventStore,
			s3blob.WithChecker(s3blob.NewChecker(s3Client)),
			s3blob.WithBatchSize(cfg.Archive.BatchSize),
		)
	}

	return deps, cleanup, nil
}

func postgresConfig(cfg *config.Config, logger *slog.Logger) postgres.ClientConfig {
	return postgres.ClientConfig{
		DSN:       strings.TrimSpace(cfg.Database.DSN),
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		Database:  cfg.Database.Name,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		SSLMode:   cfg.Database.SSLMode,
		MaxConns:  cfg.Database.PoolMax,
		MinConns:  cfg.Database.PoolMin,
		SlowQuery: cfg.Database.SlowQuery.Duration,
		Logger:    logger.With(slog.String("component", "postgres")),
	}
}
