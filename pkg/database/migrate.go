package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/deck_credits/migrations"
	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Migration directions.
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

// MigratePostgres applies the embedded PostgreSQL migrations using a temporary
// database/sql connection through the pgx stdlib driver.
func MigratePostgres(databaseURL string, direction string, logger *slog.Logger) error {
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database connection for migrations: %w", err)
	}
	if err := migrationDB.Ping(); err != nil {
		_ = migrationDB.Close()
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		_ = migrationDB.Close()
		return fmt.Errorf("create postgres driver instance for migrations: %w", err)
	}

	source, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		_ = migrationDB.Close()
		return fmt.Errorf("open embedded postgres migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = migrationDB.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}

	runErr := run(m, direction, logger)

	// Closing the migrate instance also closes migrationDB.
	sourceErr, dbErr := m.Close()
	if runErr != nil {
		return runErr
	}
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}
	return nil
}

// MigrateSQLite applies the embedded SQLite migrations on db. db stays open.
func MigrateSQLite(db *sql.DB, direction string, logger *slog.Logger) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver instance for migrations: %w", err)
	}

	source, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return fmt.Errorf("open embedded sqlite migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close would close db, which the caller still owns.
	return run(m, direction, logger)
}

func run(m *migrate.Migrate, direction string, logger *slog.Logger) error {
	var err error
	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.", slog.String("direction", direction))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations (%s): %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr == nil && dirty {
		return fmt.Errorf("database is dirty at migration version %d", version)
	}
	logger.Info("Database migrations applied successfully.", slog.String("direction", direction), slog.Uint64("version", uint64(version)))
	return nil
}
