package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int, error)
}

// BookingRepository stores bookings. ListBookings orders by reservation date
// then arrival time, both descending, and reports the unpaginated total.
//
// Writes are conditional. CreateBooking stores revision 1. UpdateBooking and
// DeleteBooking only touch the row while its stored revision still equals the
// one the caller read, and UpdateBooking bumps it by one. A missing row yields
// ErrNotFound and a moved revision yields ErrStale.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	DeleteBooking(ctx context.Context, id string, revision int64) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, int, error)
}

// NotificationRepository stores per-recipient inbox rows.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AuditRepository appends and lists audit entries.
type AuditRepository interface {
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	UserRepository
	SessionRepository
	BookingRepository
	NotificationRepository
	AuditRepository
	Migrate(ctx context.Context) error
	Close() error
}
