// Package memory provides a process-local implementation of every
// persistence repository. It backs tests and single-node demo deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/booking-manager/internal/persistence"
)

// Storage keeps every record in maps guarded by a single lock.
type Storage struct {
	mu            sync.RWMutex
	users         map[string]persistence.User
	sessions      map[string]persistence.Session
	bookings      map[string]persistence.Booking
	notifications map[string]persistence.Notification
	audit         []persistence.AuditEntry
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:         make(map[string]persistence.User),
		sessions:      make(map[string]persistence.Session),
		bookings:      make(map[string]persistence.Booking),
		notifications: make(map[string]persistence.Notification),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(_ context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if s.emailTakenLocked(user.ID, user.Email) {
		return persistence.ErrDuplicate
	}

	user.Email = normalizeEmail(user.Email)
	s.users[user.ID] = cloneUser(user)
	return nil
}

// UpdateUser updates an existing user.
func (s *Storage) UpdateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if s.emailTakenLocked(user.ID, user.Email) {
		return persistence.ErrDuplicate
	}

	user.Email = normalizeEmail(user.Email)
	if user.PasswordHash == "" {
		user.PasswordHash = existing.PasswordHash
	}
	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return cloneUser(user), nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Storage) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := normalizeEmail(email)
	for _, user := range s.users {
		if user.Email == lower {
			return cloneUser(user), nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(_ context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) emailTakenLocked(id, email string) bool {
	lower := normalizeEmail(email)
	for existingID, user := range s.users {
		if existingID != id && user.Email == lower {
			return true
		}
	}
	return false
}

// --- SessionRepository implementation ---

// CreateSession stores a new session keyed by token.
func (s *Storage) CreateSession(_ context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[session.UserID]; !ok {
		return persistence.Session{}, persistence.ErrForeignKeyViolation
	}
	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	for _, existing := range s.sessions {
		if existing.ID == session.ID {
			return persistence.Session{}, persistence.ErrDuplicate
		}
	}

	stored := cloneSession(session)
	s.sessions[session.Token] = stored
	return cloneSession(stored), nil
}

// GetSession retrieves a session by token.
func (s *Storage) GetSession(_ context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[strings.TrimSpace(token)]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// RevokeSession stamps the revocation time on a session.
func (s *Storage) RevokeSession(_ context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(token)
	session, ok := s.sessions[key]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	at := revokedAt.UTC()
	session.RevokedAt = &at
	session.UpdatedAt = at
	s.sessions[key] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (s *Storage) DeleteExpiredSessions(_ context.Context, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.ExpiresAt.IsZero() || session.ExpiresAt.After(reference) {
			continue
		}
		delete(s.sessions, token)
		removed++
	}
	return removed, nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking.
func (s *Storage) CreateBooking(_ context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.CreatorID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	booking.Revision = 1
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// UpdateBooking replaces an existing booking if booking.Revision is still
// current. The creation timestamp is preserved.
func (s *Storage) UpdateBooking(_ context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[booking.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if existing.Revision != booking.Revision {
		return persistence.ErrStale
	}
	booking.CreatedAt = existing.CreatedAt
	booking.Revision = existing.Revision + 1
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(_ context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// DeleteBooking removes a booking and its attachments while revision is current.
func (s *Storage) DeleteBooking(_ context.Context, id string, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if existing.Revision != revision {
		return persistence.ErrStale
	}
	delete(s.bookings, id)
	return nil
}

// ListBookings returns the bookings matching filter and the unpaginated total.
func (s *Storage) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if filter.Matches(booking) {
			matched = append(matched, cloneBooking(booking))
		}
	}
	persistence.SortBookings(matched)
	return filter.Paginate(matched), len(matched), nil
}

// --- NotificationRepository implementation ---

// CreateNotifications stores inbox rows. The batch is all or nothing.
func (s *Storage) CreateNotifications(_ context.Context, notifications []persistence.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		if n.ID == "" || n.UserID == "" {
			return persistence.ErrConstraintViolation
		}
		if _, ok := s.notifications[n.ID]; ok {
			return persistence.ErrDuplicate
		}
	}
	for _, n := range notifications {
		s.notifications[n.ID] = cloneNotification(n)
	}
	return nil
}

// ListNotifications returns a user's inbox newest first.
func (s *Storage) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]persistence.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, cloneNotification(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountUnread counts a user's unread inbox rows.
func (s *Storage) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one of a user's rows as read.
func (s *Storage) MarkRead(_ context.Context, userID, id string, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return persistence.ErrNotFound
	}
	if !n.Read {
		at := readAt.UTC()
		n.Read = true
		n.ReadAt = &at
		s.notifications[id] = n
	}
	return nil
}

// MarkAllRead flags every unread row of a user as read.
func (s *Storage) MarkAllRead(_ context.Context, userID string, readAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := readAt.UTC()
	changed := 0
	for id, n := range s.notifications {
		if n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &at
		s.notifications[id] = n
		changed++
	}
	return changed, nil
}

// DeleteNotification removes one of a user's rows.
func (s *Storage) DeleteNotification(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

// PurgeReadBefore removes read rows whose read time precedes cutoff.
func (s *Storage) PurgeReadBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, n := range s.notifications {
		if n.Read && n.ReadAt != nil && n.ReadAt.Before(cutoff) {
			delete(s.notifications, id)
			removed++
		}
	}
	return removed, nil
}

// --- AuditRepository implementation ---

// AppendAuditEntry appends an entry to the trail.
func (s *Storage) AppendAuditEntry(_ context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, cloneAuditEntry(entry))
	return nil
}

// ListAuditEntries returns matching entries newest first.
func (s *Storage) ListAuditEntries(_ context.Context, filter persistence.AuditFilter) ([]persistence.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		entry := s.audit[i]
		if filter.ActorID != "" && entry.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		if filter.Since != nil && entry.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, cloneAuditEntry(entry))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Helpers ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

func cloneUser(user persistence.User) persistence.User {
	out := user
	out.LastSeenAt = cloneTime(user.LastSeenAt)
	return out
}

func cloneSession(session persistence.Session) persistence.Session {
	out := session
	out.RevokedAt = cloneTime(session.RevokedAt)
	return out
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	out := booking
	out.ProcessedAt = cloneTime(booking.ProcessedAt)
	if booking.Attachments != nil {
		out.Attachments = make([]persistence.Attachment, len(booking.Attachments))
		copy(out.Attachments, booking.Attachments)
	}
	return out
}

func cloneNotification(n persistence.Notification) persistence.Notification {
	out := n
	out.ReadAt = cloneTime(n.ReadAt)
	return out
}

func cloneAuditEntry(entry persistence.AuditEntry) persistence.AuditEntry {
	out := entry
	if entry.Details != nil {
		out.Details = make(map[string]string, len(entry.Details))
		for k, v := range entry.Details {
			out.Details[k] = v
		}
	}
	return out
}
