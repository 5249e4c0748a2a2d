// Package postgres provides the PostgreSQL store for hosted deployments.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/icebreaker-scheduler/internal/persistence"
	"github.com/example/icebreaker-scheduler/internal/persistence/migration"
	"github.com/example/icebreaker-scheduler/internal/persistence/sqlstore"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Postgres SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Dialect describes PostgreSQL to the shared repositories.
var Dialect = sqlstore.Dialect{
	Dialect:    migration.Postgres,
	EncodeTime: sqlstore.NativeTime,
	MapError:   MapError,
	Retryable:  Retryable,
}

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Storage is a PostgreSQL-backed persistence.Store.
type Storage struct {
	*sqlstore.Store
	logger *slog.Logger
}

// Open connects through the pgx database/sql driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, opts ...sqlstore.Option) (*Storage, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres: dsn cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping database: %w", err)
	}

	return &Storage{
		Store:  sqlstore.New(db, Dialect, opts...),
		logger: logger.With("component", "postgres"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFSScanner(migrationFiles, "migrations"),
		migration.NewSQLExecutor(s.DB(), migration.Postgres),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// MapError maps PostgreSQL errors to persistence errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
	case codeCheckViolation, codeNotNullViolation, codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	}
	return err
}

// Retryable reports whether err is a serialization failure or deadlock.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
