package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/persistence"
	"github.com/example/booking-manager/internal/persistence/bridge"
	"github.com/example/booking-manager/internal/persistence/memory"
	"github.com/example/booking-manager/internal/persistence/sqlite"
	"github.com/example/booking-manager/internal/persistence/sqlite/migration"
)

// SessionTTL is the login session lifetime used by harness services.
const SessionTTL = 12 * time.Hour

// SharedSecret signs shared tokens issued through a harness.
const SharedSecret = "harness-shared-secret"

// fastHash keeps argon2id cheap enough for seeding many accounts.
var fastHash = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// HashPassword hashes password with test sized argon2id parameters.
func HashPassword(password string) (string, error) {
	return application.CreatePasswordHash(password, fastHash)
}

// Harness wires every application service over one store with a
// controllable clock and deterministic identifiers.
type Harness struct {
	Store    persistence.Store
	Repos    bridge.Repositories
	Clock    *Clock
	IDs      *IDGenerator
	Tokens   *IDGenerator
	Location *time.Location
	Logger   *slog.Logger

	Cache         *application.MemorySnapshotCache
	Signer        *application.SharedTokenSigner
	Audit         *application.AuditLog
	Notifications *application.NotificationService
	Dispatcher    *application.Dispatcher
	Bookings      *application.BookingService
	Sync          *application.SyncService
	Auth          *application.AuthService
	Admin         *application.AdminService
	Profiles      *application.ProfileService
	Maintenance   *application.MaintenanceService
}

// HarnessOption customises a Harness before its services are built.
type HarnessOption func(*Harness)

// WithHarnessClock replaces the default clock.
func WithHarnessClock(clock *Clock) HarnessOption {
	return func(h *Harness) { h.Clock = clock }
}

// WithHarnessLocation sets the restaurant time zone.
func WithHarnessLocation(loc *time.Location) HarnessOption {
	return func(h *Harness) { h.Location = loc }
}

// NewMemoryHarness builds a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()
	return newHarness(tb, memory.New(), opts...)
}

// NewSQLiteHarness builds a harness over a migrated SQLite file in a
// temporary directory.
func NewSQLiteHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	storage, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	return newHarness(tb, storage, opts...)
}

func newHarness(tb testing.TB, store persistence.Store, opts ...HarnessOption) *Harness {
	tb.Helper()

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	h := &Harness{
		Store:    store,
		Repos:    bridge.New(store, nil),
		Clock:    NewClock(time.Time{}),
		IDs:      NewIDGenerator("id"),
		Tokens:   NewIDGenerator("token"),
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	now := h.Clock.NowFunc()
	nextID := h.IDs.NextFunc()

	h.Cache = application.NewMemorySnapshotCache(time.Minute, 16, now)
	h.Signer = application.NewSharedTokenSigner(SharedSecret, 0, now)
	h.Audit = application.NewAuditLog(h.Repos.Audit, nextID, now, h.Logger)
	h.Notifications = application.NewNotificationService(h.Repos.Notifications, now, h.Logger)
	h.Dispatcher = application.NewDispatcher(h.Repos.Users, nextID, now,
		application.WithDispatchLogger(h.Logger),
		application.WithSink(h.Notifications),
	)
	h.Bookings = application.NewBookingService(h.Repos.Bookings, h.Repos.Users, nextID, now,
		application.WithBookingNotifier(h.Dispatcher),
		application.WithBookingAudit(h.Audit),
		application.WithBookingLogger(h.Logger),
		application.WithSnapshotInvalidator(h.Cache),
		application.WithBookingLocation(h.Location),
	)
	h.Sync = application.NewSyncService(h.Repos.Bookings, nextID, now,
		application.WithSyncCache(h.Cache),
		application.WithSyncAudit(h.Audit),
		application.WithSyncLogger(h.Logger),
	)
	h.Auth = application.NewAuthService(h.Repos.Users, h.Repos.Sessions, h.Tokens.NextFunc(), now, SessionTTL,
		application.WithSharedTokens(h.Signer),
		application.WithAuthAudit(h.Audit),
		application.WithAuthLogger(h.Logger),
		application.WithPasswordHasher(HashPassword),
	)
	h.Admin = application.NewAdminService(h.Repos.Users, h.Audit, h.Audit, HashPassword, nextID, now, h.Logger,
		application.WithAdminBookings(h.Repos.Bookings),
	)
	h.Profiles = application.NewProfileService(h.Repos.Users, h.Repos.Bookings, h.Audit, h.Audit, now, h.Logger)
	h.Maintenance = application.NewMaintenanceService(h.Repos.Bookings, h.Repos.Users, h.Dispatcher, now, h.Location, h.Logger)

	tb.Cleanup(h.Dispatcher.Wait)
	return h
}

// SeedUser stores the account described by fixture and returns it.
func (h *Harness) SeedUser(tb testing.TB, fixture UserFixture) application.User {
	tb.Helper()

	hash, err := HashPassword(fixture.Password)
	if err != nil {
		tb.Fatalf("hash password: %v", err)
	}
	user, err := h.Repos.Users.CreateUser(context.Background(), application.UserCredentials{
		User:         fixture.User(),
		PasswordHash: hash,
	})
	if err != nil {
		tb.Fatalf("seed user %s: %v", fixture.ID, err)
	}
	return user
}

// SeedBooking creates a booking on behalf of actor through the lifecycle
// service and waits for its notifications.
func (h *Harness) SeedBooking(tb testing.TB, actor application.Actor, input application.BookingInput) application.Booking {
	tb.Helper()

	booking, err := h.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{Actor: actor, Input: input})
	if err != nil {
		tb.Fatalf("seed booking: %v", err)
	}
	h.Dispatcher.Wait()
	return booking
}

// Login authenticates fixture and returns the session token.
func (h *Harness) Login(tb testing.TB, fixture UserFixture) string {
	tb.Helper()

	result, err := h.Auth.Authenticate(context.Background(), application.AuthenticateParams{
		Email:    fixture.Email,
		Password: fixture.Password,
	})
	if err != nil {
		tb.Fatalf("login %s: %v", fixture.Email, err)
	}
	return result.Session.Token
}
