package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/leeglobal/lee_ledger/internal/config"
	"github.com/leeglobal/lee_ledger/internal/infra"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/logging"
	"github.com/leeglobal/lee_ledger/internal/metrics"
	"github.com/leeglobal/lee_ledger/internal/notification"
	"github.com/leeglobal/lee_ledger/internal/routes"
	"github.com/leeglobal/lee_ledger/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close ledger store", "error", err)
		}
		if db != nil {
			db.Close()
		}
	}()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, infra.RedisOptions{})
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	m := metrics.New()
	dispatcher := notification.NewDispatcher(newNotifier(cfg, logger), notification.DispatcherOptions{
		Workers: cfg.NotifyWorkers,
	}, logger, m)
	defer dispatcher.Close()

	srv, err := server.New(routes.Deps{
		Cfg:        cfg,
		Store:      store,
		DB:         db,
		Cache:      cache,
		Logger:     logger,
		Metrics:    m,
		Dispatcher: dispatcher,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen(logger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}

	logger.Info("server exited cleanly")
}

// openStore picks PostgreSQL when DATABASE_URL is set and applies pending
// migrations; otherwise the ledger lives in memory.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ledger.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory ledger")
		return ledger.NewInMemory(), nil, nil
	}

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, infra.PoolOptions{})
	if err != nil {
		return nil, nil, err
	}
	applied, err := infra.Migrate(ctx, db, migrate.Up, 0)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if applied > 0 {
		logger.Info("migrations applied", "count", applied)
	}
	return ledger.NewPostgres(db), db, nil
}

func newNotifier(cfg config.Config, logger *slog.Logger) notification.Notifier {
	if !cfg.SMTPEnabled() {
		return notification.NewLoggerNotifier(logger)
	}
	return notification.NewSMTPNotifier(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.FromEmail,
	})
}
