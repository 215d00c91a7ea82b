// Package sqlite implements the persistence repositories on SQLite through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/booking-manager/internal/persistence"
	"github.com/example/booking-manager/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*UserRepository
	*SessionRepository
	*BookingRepository
	*NotificationRepository
	*AuditRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open opens the database at dsn with the default configuration.
func Open(dsn string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(dsn), logger)
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		UserRepository:         NewUserRepository(pool),
		SessionRepository:      NewSessionRepository(pool),
		BookingRepository:      NewBookingRepository(pool),
		NotificationRepository: NewNotificationRepository(pool),
		AuditRepository:        NewAuditRepository(pool),
		pool:                   pool,
		logger:                 logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFSScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
