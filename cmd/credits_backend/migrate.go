package main

import (
	"fmt"
	"log/slog"

	"github.com/SscSPs/deck_credits/internal/platform/config"
	"github.com/SscSPs/deck_credits/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the ledger schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{database.MigrateUp, database.MigrateDown},
		RunE: func(_ *cobra.Command, args []string) error {
			direction := database.MigrateUp
			if len(args) == 1 {
				direction = args[0]
			}
			return runMigrate(a.cfg, direction, a.logger)
		},
	}
}

func runMigrate(cfg *config.Config, direction string, logger *slog.Logger) error {
	logger = logger.With(slog.String("driver", cfg.StoreDriver), slog.String("direction", direction))
	logger.Info("Running database migrations...")

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return database.MigratePostgres(cfg.DatabaseURL, direction, logger)
	case config.StoreDriverSQLite:
		db, err := database.NewSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		defer db.Close()
		return database.MigrateSQLite(db, direction, logger)
	}
	return fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
