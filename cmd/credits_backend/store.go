package main

import (
	"context"
	"fmt"
	"log/slog"

	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	"github.com/SscSPs/deck_credits/internal/platform/config"
	"github.com/SscSPs/deck_credits/internal/repositories/database/pgsql"
	"github.com/SscSPs/deck_credits/internal/repositories/database/sqlite"
	"github.com/SscSPs/deck_credits/pkg/database"
)

// ledgerStore is the opened ledger database for the configured driver.
type ledgerStore struct {
	repos portsrepo.RepositoryProvider
	close func()
}

func (s *ledgerStore) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// openStore connects to the configured ledger store and, when migrate is set,
// brings its schema up to date first.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*ledgerStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if migrate {
			logger.Info("Running database migrations...", slog.String("driver", cfg.StoreDriver))
			if err := database.MigratePostgres(cfg.DatabaseURL, database.MigrateUp, logger); err != nil {
				return nil, err
			}
		}
		dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		logger.Info("Database connection pool established.")
		return &ledgerStore{repos: pgsql.NewRepositoryProvider(dbPool), close: dbPool.Close}, nil

	case config.StoreDriverSQLite:
		db, err := database.NewSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if migrate {
			logger.Info("Running database migrations...", slog.String("driver", cfg.StoreDriver))
			if err := database.MigrateSQLite(db, database.MigrateUp, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		logger.Info("SQLite database opened.", slog.String("path", cfg.SQLitePath))
		return &ledgerStore{
			repos: sqlite.NewRepositoryProvider(db),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("Error closing sqlite database", slog.String("error", err.Error()))
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
