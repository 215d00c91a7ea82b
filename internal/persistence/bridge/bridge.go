// Package bridge adapts persistence repositories to the interfaces consumed by
// the application services. It converts between the two model families and
// translates storage sentinels into application errors.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/persistence"
)

// Repositories bundles every adapter built over one store.
type Repositories struct {
	Users         *UserStore
	Sessions      *SessionStore
	Bookings      *BookingStore
	Notifications *NotificationStore
	Audit         *AuditStore
}

// New wires adapters over store. A non-nil audit repository replaces the
// store's own audit trail.
func New(store persistence.Store, audit persistence.AuditRepository) Repositories {
	if audit == nil {
		audit = store
	}
	return Repositories{
		Users:         NewUserStore(store),
		Sessions:      NewSessionStore(store),
		Bookings:      NewBookingStore(store),
		Notifications: NewNotificationStore(store),
		Audit:         NewAuditStore(audit),
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrStale):
		return fmt.Errorf("%w: %w", application.ErrConflict, err)
	}
	return err
}

// UserStore serves the user repository, credential store and user directory.
type UserStore struct {
	repo persistence.UserRepository
}

// NewUserStore wraps repo.
func NewUserStore(repo persistence.UserRepository) *UserStore {
	return &UserStore{repo: repo}
}

// CreateUser stores a new account with its password hash.
func (a *UserStore) CreateUser(ctx context.Context, credentials application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(credentials.User, credentials.PasswordHash)); err != nil {
		return application.User{}, translate(err)
	}
	return a.GetUser(ctx, credentials.User.ID)
}

// GetUser loads an account.
func (a *UserStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, translate(err)
	}
	return toApplicationUser(stored), nil
}

// UpdateUser saves an account and keeps the stored password hash.
func (a *UserStore) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, translate(err)
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, translate(err)
	}
	return a.GetUser(ctx, user.ID)
}

// UpdatePasswordHash replaces the stored hash and leaves the profile alone.
func (a *UserStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	current, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return translate(err)
	}
	current.PasswordHash = hash
	return translate(a.repo.UpdateUser(ctx, current))
}

// ListUsers returns every account.
func (a *UserStore) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, translate(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// GetUserCredentialsByEmail loads an account together with its hash.
func (a *UserStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, translate(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

// SessionStore adapts a persistence.SessionRepository.
type SessionStore struct {
	repo persistence.SessionRepository
}

// NewSessionStore wraps repo.
func NewSessionStore(repo persistence.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (a *SessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, translate(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, translate(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, translate(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int, error) {
	removed, err := a.repo.DeleteExpiredSessions(ctx, reference)
	return removed, translate(err)
}

// BookingStore adapts a persistence.BookingRepository.
type BookingStore struct {
	repo persistence.BookingRepository
}

// NewBookingStore wraps repo.
func NewBookingStore(repo persistence.BookingRepository) *BookingStore {
	return &BookingStore{repo: repo}
}

func (a *BookingStore) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, translate(err)
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *BookingStore) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, translate(err)
	}
	return toApplicationBooking(stored), nil
}

func (a *BookingStore) UpdateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, translate(err)
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *BookingStore) DeleteBooking(ctx context.Context, id string, revision int64) error {
	return translate(a.repo.DeleteBooking(ctx, id, revision))
}

func (a *BookingStore) ListBookings(ctx context.Context, query application.BookingQuery) ([]application.Booking, int, error) {
	models, total, err := a.repo.ListBookings(ctx, toPersistenceFilter(query))
	if err != nil {
		return nil, 0, translate(err)
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, total, nil
}

// NotificationStore adapts a persistence.NotificationRepository.
type NotificationStore struct {
	repo persistence.NotificationRepository
}

// NewNotificationStore wraps repo.
func NewNotificationStore(repo persistence.NotificationRepository) *NotificationStore {
	return &NotificationStore{repo: repo}
}

func (a *NotificationStore) CreateNotifications(ctx context.Context, notifications []application.Notification) error {
	models := make([]persistence.Notification, 0, len(notifications))
	for _, n := range notifications {
		models = append(models, toPersistenceNotification(n))
	}
	return translate(a.repo.CreateNotifications(ctx, models))
}

func (a *NotificationStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]application.Notification, error) {
	models, err := a.repo.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]application.Notification, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationNotification(model))
	}
	return out, nil
}

func (a *NotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := a.repo.CountUnread(ctx, userID)
	return count, translate(err)
}

func (a *NotificationStore) MarkRead(ctx context.Context, userID, id string, readAt time.Time) error {
	return translate(a.repo.MarkRead(ctx, userID, id, readAt))
}

func (a *NotificationStore) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	changed, err := a.repo.MarkAllRead(ctx, userID, readAt)
	return changed, translate(err)
}

func (a *NotificationStore) DeleteNotification(ctx context.Context, userID, id string) error {
	return translate(a.repo.DeleteNotification(ctx, userID, id))
}

func (a *NotificationStore) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed, err := a.repo.PurgeReadBefore(ctx, cutoff)
	return removed, translate(err)
}

// AuditStore adapts a persistence.AuditRepository.
type AuditStore struct {
	repo persistence.AuditRepository
}

// NewAuditStore wraps repo.
func NewAuditStore(repo persistence.AuditRepository) *AuditStore {
	return &AuditStore{repo: repo}
}

func (a *AuditStore) AppendAuditEntry(ctx context.Context, entry application.AuditEntry) error {
	return translate(a.repo.AppendAuditEntry(ctx, toPersistenceAuditEntry(entry)))
}

func (a *AuditStore) ListAuditEntries(ctx context.Context, query application.AuditQuery) ([]application.AuditEntry, error) {
	models, err := a.repo.ListAuditEntries(ctx, persistence.AuditFilter{
		ActorID:    query.ActorID,
		Action:     string(query.Action),
		EntityType: query.EntityType,
		Since:      cloneTime(query.Since),
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, translate(err)
	}
	out := make([]application.AuditEntry, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationAuditEntry(model))
	}
	return out, nil
}
