package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/serumledger/internal/blob/s3"
	"github.com/alanyoungcy/serumledger/internal/cache/memory"
	"github.com/alanyoungcy/serumledger/internal/cache/redis"
	"github.com/alanyoungcy/serumledger/internal/config"
	"github.com/alanyoungcy/serumledger/internal/domain"
	"github.com/alanyoungcy/serumledger/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the modes run on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Postgres *postgres.Client

	// Stores
	FillStore  domain.FillStore
	AuditStore domain.AuditStore

	// Caches. LedgerCache falls back to process memory; the others are nil
	// unless Redis is enabled.
	LedgerCache domain.LedgerCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage; nil unless S3 is enabled.
	BlobWriter domain.BlobWriter
}

// needsRedis returns true for modes that use the cache, limiter or locks.
func needsRedis(mode string) bool {
	return mode == "server" || mode == "export"
}

// needsS3 returns true for modes that may write exports.
func needsS3(mode string) bool {
	return mode == "server" || mode == "export"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, mode string, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (every mode) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:             cfg.Postgres.DSN,
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		Database:        cfg.Postgres.Database,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxConns:        cfg.Postgres.PoolMaxConns,
		MinConns:        cfg.Postgres.PoolMinConns,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime.Duration,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.FillStore = postgres.NewFillStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled && needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		if cfg.Redis.CacheTTL.Duration > 0 && mode == "server" {
			deps.LedgerCache = redis.NewLedgerCache(redisClient, cfg.Redis.CacheTTL.Duration)
		}
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	if deps.LedgerCache == nil && mode == "server" && cfg.Ledger.MemoryCacheSize > 0 {
		deps.LedgerCache = memory.NewLedgerCache(cfg.Ledger.MemoryCacheSize, cfg.Ledger.MemoryCacheTTL.Duration)
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled && needsS3(mode) {
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		// Export mode has nothing else to do, so fail before reading ledgers.
		if mode == "export" {
			if err := s3Client.Health(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: %w", err)
			}
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.Bool("redis", deps.RateLimiter != nil),
		slog.Bool("ledger_cache", deps.LedgerCache != nil),
		slog.Bool("s3", deps.BlobWriter != nil),
	)

	return deps, cleanup, nil
}
