// Package sqlite provides the embedded SQLite store used by default.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/icebreaker-scheduler/internal/persistence/migration"
	"github.com/example/icebreaker-scheduler/internal/persistence/sqlstore"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Dialect describes SQLite to the shared repositories.
var Dialect = sqlstore.Dialect{
	Dialect:    migration.SQLite,
	EncodeTime: sqlstore.TextTime,
	MapError:   MapError,
	Retryable:  Retryable,
}

// Storage is a SQLite-backed persistence.Store.
type Storage struct {
	*sqlstore.Store
	logger *slog.Logger
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, opts ...sqlstore.Option) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Store:  sqlstore.New(db, Dialect, opts...),
		logger: logger.With("component", "sqlite"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := NewMigrationManager(s, s.logger)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// NewMigrationManager builds a migration manager over the embedded files.
func NewMigrationManager(s *Storage, logger *slog.Logger) *migration.Manager {
	return migration.NewManager(
		migration.NewFSScanner(migrationFiles, "migrations"),
		migration.NewSQLExecutor(s.DB(), migration.SQLite),
		logger,
	)
}
