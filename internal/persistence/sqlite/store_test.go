package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/booking-manager/internal/persistence"
	"github.com/example/booking-manager/internal/persistence/sqlite"
	"github.com/example/booking-manager/internal/persistence/sqlite/migration"
	"github.com/example/booking-manager/internal/persistence/storetest"
)

func openStorage(t *testing.T) *sqlite.Storage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bookings.db")
	storage, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate storage: %v", err)
	}
	return storage
}

func TestStorageContract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) persistence.Store {
		return openStorage(t)
	})
}

func TestStorageMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	storage := openStorage(t)
	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestStorageRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	storage := openStorage(t)
	booking := storetest.Booking("b-1", "2024-12-10", "19:30")
	booking.Status = "CANCELLED"

	err := storage.CreateBooking(context.Background(), booking)
	if err == nil {
		t.Fatalf("expected check constraint failure")
	}
}
