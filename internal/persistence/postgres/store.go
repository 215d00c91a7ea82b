// Package postgres implements the persistence repositories on PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/booking-manager/internal/persistence"
)

//go:embed schema.sql
var schema string

// Storage bundles the PostgreSQL repositories over one pool.
type Storage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int32, logger *slog.Logger) (*Storage, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(pool, logger), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{pool: pool, logger: logger}
}

// Migrate creates the schema when it is missing. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	start := time.Now()
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	s.logger.InfoContext(ctx, "postgres schema applied", slog.Duration("duration", time.Since(start)))
	return nil
}

// Truncate empties every table.
func (s *Storage) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE audit_entries, notifications, sessions, bookings, users`)
	return MapError(err)
}

// Close releases the pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MapError maps pgx errors to persistence sentinels.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case "23503":
			return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
		case "23502", "23514":
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		}
	}
	return err
}

func requireRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// PostgreSQL keeps microseconds; values are rounded down on the way in so
// that what callers wrote compares equal to what they read back.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func stampPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := stamp(*t)
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// args collects positional parameters for dynamically built queries.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}
