package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/serumledger/internal/server"
	"github.com/alanyoungcy/serumledger/internal/server/handler"
	"github.com/alanyoungcy/serumledger/internal/service"
)

// exportLockTTL bounds how long a crashed export can block the next one.
const exportLockTTL = 5 * time.Minute

// ServerMode serves the ledger API until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	if a.cfg.Postgres.RunMigrations {
		if err := a.migrate(ctx, deps); err != nil {
			return err
		}
	}

	ledgers := a.newLedgerService(deps)

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(ledgers, a.logger),
		Transactions: handler.NewTransactionsHandler(ledgers, a.logger),
	}
	if deps.BlobWriter != nil {
		exports := a.newExportService(ledgers, deps)
		handlers.Export = handler.NewExportHandler(exports, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// MigrateMode applies the embedded schema migrations and returns.
func (a *App) MigrateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting migrate mode")
	return a.migrate(ctx, deps)
}

// ExportMode writes the ledgers of the configured accounts to object storage
// as one batch object and returns.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting export mode",
		slog.Int("accounts", len(a.cfg.Export.Accounts)),
	)
	if deps.BlobWriter == nil {
		return errors.New("app: export mode requires s3")
	}

	format, err := service.ParseExportFormat(a.cfg.Export.Format)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	exports := a.newExportService(a.newLedgerService(deps), deps)

	var res service.ExportResult
	if len(a.cfg.Export.Accounts) == 1 {
		res, err = exports.Export(ctx, a.cfg.Export.Accounts[0], format)
	} else {
		res, err = exports.ExportBatch(ctx, a.cfg.Export.Accounts, format)
	}
	if err != nil {
		return fmt.Errorf("app: export: %w", err)
	}

	a.logger.InfoContext(ctx, "export complete",
		slog.String("bucket", a.cfg.S3.Bucket),
		slog.String("path", res.Path),
		slog.Int("rows", res.Rows),
	)
	return nil
}

func (a *App) migrate(ctx context.Context, deps *Dependencies) error {
	n, err := deps.Postgres.RunMigrations(ctx)
	if err != nil {
		return fmt.Errorf("app: migrations: %w", err)
	}
	a.logger.InfoContext(ctx, "migrations applied", slog.Int("count", n))
	return nil
}

func (a *App) newLedgerService(deps *Dependencies) *service.LedgerService {
	return service.NewLedgerService(deps.FillStore, deps.LedgerCache, service.LedgerConfig{
		QueryTimeout: a.cfg.Ledger.QueryTimeout.Duration,
		CountDropped: a.cfg.Ledger.CountDropped,
	}, a.logger)
}

func (a *App) newExportService(ledgers *service.LedgerService, deps *Dependencies) *service.ExportService {
	exports := service.NewExportService(ledgers, deps.BlobWriter, deps.AuditStore, a.cfg.S3.Prefix, a.logger)
	if deps.LockManager != nil {
		exports = exports.WithLocks(deps.LockManager, exportLockTTL)
	}
	return exports
}
