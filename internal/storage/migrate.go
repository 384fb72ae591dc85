package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending migration for the dialect.
func RunMigrations(dialect Dialect, dsn string) error {
	dir, err := fs.Sub(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("locate %s migrations: %w", dialect, err)
	}
	d, err := iofs.New(dir, ".")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	var m *migrate.Migrate
	switch dialect {
	case DialectSQLite:
		// Separate connection so the migrator cannot hold the single
		// writer connection of the main pool.
		migrateDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return fmt.Errorf("open migration database: %w", err)
		}
		defer migrateDB.Close()

		driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", d, "sqlite", driver)
		if err != nil {
			return fmt.Errorf("create migrate instance: %w", err)
		}
	case DialectPostgres:
		m, err = migrate.NewWithSourceInstance("iofs", d, dsn)
		if err != nil {
			return fmt.Errorf("create migrate instance: %w", err)
		}
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("Migrations applied", "dialect", dialect, "version", version, "dirty", dirty)
	return nil
}
