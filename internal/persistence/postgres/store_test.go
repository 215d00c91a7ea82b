package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/booking-manager/internal/persistence"
	"github.com/example/booking-manager/internal/persistence/postgres"
	"github.com/example/booking-manager/internal/persistence/storetest"
)

// The contract suite needs a disposable database. Each subtest truncates the
// tables before it runs, so the suite never runs in parallel against one DSN.
func TestStorageContract(t *testing.T) {
	dsn := os.Getenv("BOOKING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) persistence.Store {
		ctx := context.Background()
		store, err := postgres.Open(ctx, dsn, 4, nil)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })

		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		if err := store.Truncate(ctx); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{"23505", persistence.ErrDuplicate},
		{"23503", persistence.ErrForeignKeyViolation},
		{"23502", persistence.ErrConstraintViolation},
		{"23514", persistence.ErrConstraintViolation},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()
			err := postgres.MapError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code}))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if postgres.MapError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	other := errors.New("boom")
	if !errors.Is(postgres.MapError(other), other) {
		t.Fatal("unknown errors must pass through")
	}
}
