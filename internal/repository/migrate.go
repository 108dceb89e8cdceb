package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate применяет встроенные миграции схемы. databaseURL в формате pgx5://...
func Migrate(databaseURL string, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logSchemaVersion(m, logger)
	return nil
}

type schemaVersioner interface {
	Version() (version uint, dirty bool, err error)
}

// logSchemaVersion пишет версию схемы после миграций; dirty означает прерванную миграцию
func logSchemaVersion(v schemaVersioner, logger *zap.Logger) {
	version, dirty, err := v.Version()
	if err != nil {
		logger.Error("Failed to read schema version", zap.Error(err))
		return
	}
	if dirty {
		logger.Warn("Database schema is dirty", zap.Uint("version", version))
		return
	}
	logger.Info("Database migrations applied", zap.Uint("version", version))
}
