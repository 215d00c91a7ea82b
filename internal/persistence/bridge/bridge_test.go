package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/permission"
	"github.com/example/booking-manager/internal/persistence"
	"github.com/example/booking-manager/internal/persistence/bridge"
	"github.com/example/booking-manager/internal/persistence/memory"
)

var now = time.Date(2024, time.December, 1, 9, 0, 0, 0, time.UTC)

func staff(id, email string) application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:                   id,
			Email:                email,
			DisplayName:          "Staff " + id,
			Role:                 permission.RoleStaff,
			Tier:                 permission.TierAuthorized,
			Active:               true,
			NotificationsEnabled: true,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
		PasswordHash: "hash-" + id,
	}
}

func TestUserStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := bridge.New(memory.New(), nil)

	created, err := repos.Users.CreateUser(ctx, staff("user-1", "anna@example.com"))
	require.NoError(t, err)
	assert.Equal(t, permission.TierAuthorized, created.Tier)
	assert.Equal(t, permission.RoleStaff, created.Role)

	_, err = repos.Users.CreateUser(ctx, staff("user-2", "ANNA@example.com"))
	assert.ErrorIs(t, err, application.ErrAlreadyExists)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	created.Tier = permission.TierAdminSecondary
	updated, err := repos.Users.UpdateUser(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, permission.TierAdminSecondary, updated.Tier)

	creds, err := repos.Users.GetUserCredentialsByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-user-1", creds.PasswordHash, "update must keep the stored hash")
	assert.Equal(t, "user-1", creds.User.ID)

	require.NoError(t, repos.Users.UpdatePasswordHash(ctx, "user-1", "hash-rotated"))
	creds, err = repos.Users.GetUserCredentialsByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-rotated", creds.PasswordHash)
	assert.Equal(t, permission.TierAdminSecondary, creds.User.Tier, "a hash change must keep the profile")

	_, err = repos.Users.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, application.ErrNotFound)
	_, err = repos.Users.UpdateUser(ctx, application.User{ID: "ghost"})
	assert.ErrorIs(t, err, application.ErrNotFound)
	assert.ErrorIs(t, repos.Users.UpdatePasswordHash(ctx, "ghost", "x"), application.ErrNotFound)

	users, err := repos.Users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestBookingStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := bridge.New(memory.New(), nil)

	processed := now.Add(time.Hour)
	booking := application.Booking{
		ID:              "b-1",
		Kind:            application.BookingKindEvent,
		EventName:       "Festa di laurea",
		Phone:           "333 0000000",
		ReservationDate: "2024-12-20",
		ArrivalTime:     "20:30",
		Room:            application.RoomTooCool,
		Participants:    35,
		PackageLabel:    "Gold",
		Attachments: []application.Attachment{{
			Filename:   "preventivo.pdf",
			MimeType:   "application/pdf",
			Size:       1024,
			UploadedAt: now,
		}},
		Status:      application.BookingStatusConfirmed,
		CreatorID:   "user-1",
		ProcessorID: "admin-1",
		ProcessedAt: &processed,
		CreatedAt:   now,
		UpdatedAt:   processed,
	}

	created, err := repos.Bookings.CreateBooking(ctx, booking)
	require.NoError(t, err)
	expected := booking
	expected.Revision = 1
	assert.Equal(t, expected, created)

	_, err = repos.Bookings.CreateBooking(ctx, booking)
	assert.ErrorIs(t, err, application.ErrAlreadyExists)

	list, total, err := repos.Bookings.ListBookings(ctx, application.BookingQuery{
		Statuses: []application.BookingStatus{application.BookingStatusConfirmed},
		Room:     application.RoomTooCool,
		Limit:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, 35, list[0].Headcount())

	edited := created
	edited.Notes = "Torta alle 23"
	current, err := repos.Bookings.UpdateBooking(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Revision)

	_, err = repos.Bookings.UpdateBooking(ctx, created)
	assert.ErrorIs(t, err, application.ErrConflict)
	assert.ErrorIs(t, repos.Bookings.DeleteBooking(ctx, "b-1", created.Revision), application.ErrConflict)

	require.NoError(t, repos.Bookings.DeleteBooking(ctx, "b-1", current.Revision))
	assert.ErrorIs(t, repos.Bookings.DeleteBooking(ctx, "b-1", current.Revision), application.ErrNotFound)
}

func TestSessionAndNotificationStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repos := bridge.New(memory.New(), nil)

	_, err := repos.Users.CreateUser(ctx, staff("user-1", "anna@example.com"))
	require.NoError(t, err)

	session, err := repos.Sessions.CreateSession(ctx, application.Session{
		ID: "s-1", UserID: "user-1", Token: "tok", ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)

	_, err = repos.Sessions.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, application.ErrNotFound)

	removed, err := repos.Sessions.DeleteExpiredSessions(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	err = repos.Notifications.CreateNotifications(ctx, []application.Notification{{
		ID: "n-1", UserID: "user-1", Category: application.NotificationNewBooking, Priority: application.PriorityHigh,
		Title: "Nuova prenotazione", CreatedAt: now,
	}})
	require.NoError(t, err)

	inbox, err := repos.Notifications.ListNotifications(ctx, "user-1", true, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, application.PriorityHigh, inbox[0].Priority)

	assert.ErrorIs(t, repos.Notifications.MarkRead(ctx, "user-1", "n-404", now), application.ErrNotFound)
}

func TestAuditStoreOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := memory.New()
	trail := memory.New()
	repos := bridge.New(primary, trail)

	require.NoError(t, repos.Audit.AppendAuditEntry(ctx, application.AuditEntry{
		ID: "a-1", ActorID: "user-1", ActorKind: application.ActorRegistered, Action: application.AuditLogin,
		Details: map[string]string{"ip": "10.0.0.1"}, CreatedAt: now,
	}))

	fromPrimary, err := primary.ListAuditEntries(ctx, persistence.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, fromPrimary)

	entries, err := repos.Audit.ListAuditEntries(ctx, application.AuditQuery{Action: application.AuditLogin})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, application.ActorRegistered, entries[0].ActorKind)
	assert.Equal(t, "10.0.0.1", entries[0].Details["ip"])
}
