// Package storetest holds the behavioural checks every persistence.Store
// backend must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/booking-manager/internal/persistence"
)

// Factory returns an empty, migrated store. The factory owns cleanup.
type Factory func(t *testing.T) persistence.Store

var base = time.Date(2024, time.December, 1, 9, 0, 0, 0, time.UTC)

// Run executes the full contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("bookings", func(t *testing.T) { testBookings(t, newStore(t)) })
	t.Run("booking filters", func(t *testing.T) { testBookingFilters(t, newStore(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("audit", func(t *testing.T) { testAudit(t, newStore(t)) })
}

// User returns a valid active staff account.
func User(id, email string) persistence.User {
	return persistence.User{
		ID:                   id,
		Email:                email,
		DisplayName:          "User " + id,
		PasswordHash:         "hash-" + id,
		Role:                 "STAFF",
		Tier:                 "BASE",
		Active:               true,
		NotificationsEnabled: true,
		CreatedAt:            base,
		UpdatedAt:            base,
	}
}

// Booking returns a pending standard booking.
func Booking(id, date, arrival string) persistence.Booking {
	return persistence.Booking{
		ID:              id,
		Kind:            "STANDARD",
		CustomerName:    "Mario",
		CustomerSurname: "Rossi",
		Phone:           "+39 333 1234567",
		ReservationDate: date,
		ArrivalTime:     arrival,
		Room:            "GLASS",
		Adults:          2,
		Status:          "PENDING",
		CreatorID:       "user-1",
		CreatedAt:       base,
		UpdatedAt:       base,
	}
}

func testUsers(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	user := User("user-1", "Alice@Example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := store.CreateUser(ctx, User("user-2", "alice@example.com")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for email clash, got %v", err)
	}
	if err := store.CreateUser(ctx, User("user-1", "other@example.com")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for id clash, got %v", err)
	}

	fetched, err := store.GetUserByEmail(ctx, " ALICE@example.COM ")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if fetched.ID != "user-1" || fetched.Email != "alice@example.com" || fetched.PasswordHash != "hash-user-1" {
		t.Fatalf("unexpected user %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(base) || fetched.LastSeenAt != nil {
		t.Fatalf("unexpected timestamps %#v", fetched)
	}

	seen := base.Add(time.Hour)
	fetched.Tier = "AUTHORIZED"
	fetched.Active = false
	fetched.LastSeenAt = &seen
	fetched.PasswordHash = ""
	fetched.UpdatedAt = seen
	if err := store.UpdateUser(ctx, fetched); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	updated, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if updated.Tier != "AUTHORIZED" || updated.Active || updated.PasswordHash != "hash-user-1" {
		t.Fatalf("unexpected updated user %#v", updated)
	}
	if updated.LastSeenAt == nil || !updated.LastSeenAt.Equal(seen) {
		t.Fatalf("expected last seen %v, got %v", seen, updated.LastSeenAt)
	}

	if err := store.UpdateUser(ctx, User("ghost", "ghost@example.com")); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetUser(ctx, "ghost"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	later := User("user-0", "bruno@example.com")
	later.CreatedAt = base.Add(time.Minute)
	if err := store.CreateUser(ctx, later); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].ID != "user-1" || users[1].ID != "user-0" {
		t.Fatalf("expected creation order, got %#v", users)
	}
}

func testSessions(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	if err := store.CreateUser(ctx, User("user-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	session := persistence.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Token:     "token-1",
		ExpiresAt: base.Add(12 * time.Hour),
		CreatedAt: base,
		UpdatedAt: base,
	}
	created, err := store.CreateSession(ctx, session)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Token != "token-1" || !created.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected session %#v", created)
	}
	if _, err := store.CreateSession(ctx, session); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	orphan := session
	orphan.ID, orphan.Token, orphan.UserID = "session-x", "token-x", "ghost"
	if _, err := store.CreateSession(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}

	revokedAt := base.Add(time.Hour)
	revoked, err := store.RevokeSession(ctx, "token-1", revokedAt)
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(revokedAt) {
		t.Fatalf("expected revocation at %v, got %v", revokedAt, revoked.RevokedAt)
	}
	if _, err := store.RevokeSession(ctx, "missing", revokedAt); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	fresh := session
	fresh.ID, fresh.Token, fresh.ExpiresAt = "session-2", "token-2", base.Add(48*time.Hour)
	if _, err := store.CreateSession(ctx, fresh); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	removed, err := store.DeleteExpiredSessions(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired session removed, got %d", removed)
	}
	if _, err := store.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
	if _, err := store.GetSession(ctx, "token-2"); err != nil {
		t.Fatalf("expected live session to remain, got %v", err)
	}
}

func testBookings(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	booking := Booking("b-1", "2024-12-10", "19:30")
	booking.Attachments = []persistence.Attachment{{
		Filename:     "menu.pdf",
		OriginalName: "Menu Natale.pdf",
		MimeType:     "application/pdf",
		Size:         2048,
		URL:          "/uploads/menu.pdf",
		UploadedAt:   base,
	}}
	if err := store.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if err := store.CreateBooking(ctx, booking); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	fetched, err := store.GetBooking(ctx, "b-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if len(fetched.Attachments) != 1 || fetched.Attachments[0].OriginalName != "Menu Natale.pdf" || fetched.Attachments[0].Size != 2048 {
		t.Fatalf("unexpected attachments %#v", fetched.Attachments)
	}
	if fetched.ProcessedAt != nil || fetched.Status != "PENDING" {
		t.Fatalf("unexpected booking %#v", fetched)
	}
	if fetched.Revision != 1 {
		t.Fatalf("expected revision 1 after create, got %d", fetched.Revision)
	}
	stale := fetched

	processed := base.Add(time.Hour)
	fetched.Status = "REJECTED"
	fetched.RejectionReason = "Sala al completo"
	fetched.ProcessorID = "admin-1"
	fetched.ProcessedAt = &processed
	fetched.Attachments = nil
	fetched.UpdatedAt = processed
	if err := store.UpdateBooking(ctx, fetched); err != nil {
		t.Fatalf("UpdateBooking failed: %v", err)
	}
	updated, err := store.GetBooking(ctx, "b-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if updated.Status != "REJECTED" || updated.RejectionReason != "Sala al completo" || updated.ProcessorID != "admin-1" {
		t.Fatalf("unexpected updated booking %#v", updated)
	}
	if updated.ProcessedAt == nil || !updated.ProcessedAt.Equal(processed) || !updated.UpdatedAt.Equal(processed) {
		t.Fatalf("unexpected timestamps %#v", updated)
	}
	if !updated.CreatedAt.Equal(base) || len(updated.Attachments) != 0 {
		t.Fatalf("unexpected created or attachments %#v", updated)
	}
	if updated.Revision != 2 {
		t.Fatalf("expected revision 2 after update, got %d", updated.Revision)
	}

	// A writer still holding revision 1 must not undo the decision above.
	stale.Status = "PENDING"
	stale.Notes = "stale edit"
	if err := store.UpdateBooking(ctx, stale); !errors.Is(err, persistence.ErrStale) {
		t.Fatalf("expected ErrStale for revision 1, got %v", err)
	}
	if err := store.DeleteBooking(ctx, "b-1", stale.Revision); !errors.Is(err, persistence.ErrStale) {
		t.Fatalf("expected ErrStale on delete, got %v", err)
	}
	kept, err := store.GetBooking(ctx, "b-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if kept.Status != "REJECTED" || kept.Notes != "" || kept.Revision != 2 {
		t.Fatalf("stale write leaked into %#v", kept)
	}

	ghost := Booking("ghost", "2024-12-10", "20:00")
	ghost.Revision = 1
	if err := store.UpdateBooking(ctx, ghost); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteBooking(ctx, "b-1", kept.Revision); err != nil {
		t.Fatalf("DeleteBooking failed: %v", err)
	}
	if err := store.DeleteBooking(ctx, "b-1", kept.Revision); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testBookingFilters(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	seed := []persistence.Booking{
		Booking("a", "2024-12-10", "19:30"),
		Booking("b", "2024-12-10", "21:00"),
		Booking("c", "2024-12-12", "12:30"),
		Booking("d", "2024-12-08", "20:00"),
	}
	seed[1].Status = "CONFIRMED"
	seed[2].Kind = "EVENT"
	seed[2].EventName = "Cena aziendale"
	seed[2].CustomerName = ""
	seed[2].CustomerSurname = ""
	seed[2].Participants = 40
	seed[2].Room = "POOL"
	seed[3].CreatorID = "user-2"
	seed[3].CustomerSurname = "Bianchi"
	seed[3].CreatedAt = base.Add(48 * time.Hour)
	for _, b := range seed {
		if err := store.CreateBooking(ctx, b); err != nil {
			t.Fatalf("CreateBooking %s failed: %v", b.ID, err)
		}
	}

	cutoff := base.Add(time.Hour)
	cases := []struct {
		name   string
		filter persistence.BookingFilter
		want   []string
		total  int
	}{
		{name: "all ordered", filter: persistence.BookingFilter{}, want: []string{"c", "b", "a", "d"}, total: 4},
		{name: "status", filter: persistence.BookingFilter{Statuses: []string{"CONFIRMED", "REJECTED"}}, want: []string{"b"}, total: 1},
		{name: "kind", filter: persistence.BookingFilter{Kind: "EVENT"}, want: []string{"c"}, total: 1},
		{name: "room", filter: persistence.BookingFilter{Room: "GLASS"}, want: []string{"b", "a", "d"}, total: 3},
		{name: "date range", filter: persistence.BookingFilter{DateFrom: "2024-12-09", DateTo: "2024-12-10"}, want: []string{"b", "a"}, total: 2},
		{name: "creator", filter: persistence.BookingFilter{CreatorID: "user-2"}, want: []string{"d"}, total: 1},
		{name: "search surname", filter: persistence.BookingFilter{Search: "bian"}, want: []string{"d"}, total: 1},
		{name: "search event", filter: persistence.BookingFilter{Search: "AZIENDALE"}, want: []string{"c"}, total: 1},
		{name: "search literal percent", filter: persistence.BookingFilter{Search: "%"}, want: []string{}, total: 0},
		{name: "created before", filter: persistence.BookingFilter{CreatedBefore: &cutoff}, want: []string{"c", "b", "a"}, total: 3},
		{name: "page", filter: persistence.BookingFilter{Offset: 1, Limit: 2}, want: []string{"b", "a"}, total: 4},
		{name: "offset past end", filter: persistence.BookingFilter{Offset: 10, Limit: 2}, want: []string{}, total: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, total, err := store.ListBookings(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListBookings failed: %v", err)
			}
			if total != tc.total {
				t.Fatalf("expected total %d, got %d", tc.total, total)
			}
			ids := make([]string, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, ids)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, ids)
				}
			}
		})
	}
}

func testNotifications(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	for _, u := range []persistence.User{User("user-1", "a@example.com"), User("user-2", "b@example.com")} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	notification := func(id, userID string, offset time.Duration) persistence.Notification {
		return persistence.Notification{
			ID:        id,
			UserID:    userID,
			Category:  "NEW_BOOKING",
			Priority:  "MEDIUM",
			Title:     "Nuova prenotazione",
			Message:   "Mario Rossi",
			BookingID: "b-1",
			CreatedAt: base.Add(offset),
		}
	}
	batch := []persistence.Notification{
		notification("n-1", "user-1", 0),
		notification("n-2", "user-1", time.Minute),
		notification("n-3", "user-1", 2*time.Minute),
		notification("n-4", "user-2", 0),
	}
	if err := store.CreateNotifications(ctx, batch); err != nil {
		t.Fatalf("CreateNotifications failed: %v", err)
	}

	dup := []persistence.Notification{notification("n-5", "user-1", 0), notification("n-1", "user-1", 0)}
	if err := store.CreateNotifications(ctx, dup); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	inbox, err := store.ListNotifications(ctx, "user-1", false, 0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(inbox) != 3 || inbox[0].ID != "n-3" || inbox[2].ID != "n-1" {
		t.Fatalf("expected newest first without partial batch, got %#v", inbox)
	}

	readAt := base.Add(time.Hour)
	if err := store.MarkRead(ctx, "user-1", "n-1", readAt); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := store.MarkRead(ctx, "user-2", "n-2", readAt); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign row, got %v", err)
	}

	unread, err := store.CountUnread(ctx, "user-1")
	if err != nil || unread != 2 {
		t.Fatalf("expected 2 unread, got %d (%v)", unread, err)
	}
	onlyUnread, err := store.ListNotifications(ctx, "user-1", true, 1)
	if err != nil || len(onlyUnread) != 1 || onlyUnread[0].ID != "n-3" {
		t.Fatalf("unexpected unread page %#v (%v)", onlyUnread, err)
	}

	changed, err := store.MarkAllRead(ctx, "user-1", readAt.Add(time.Hour))
	if err != nil || changed != 2 {
		t.Fatalf("expected 2 rows marked, got %d (%v)", changed, err)
	}

	purged, err := store.PurgeReadBefore(ctx, readAt.Add(30*time.Minute))
	if err != nil || purged != 1 {
		t.Fatalf("expected 1 purged row, got %d (%v)", purged, err)
	}

	if err := store.DeleteNotification(ctx, "user-2", "n-4"); err != nil {
		t.Fatalf("DeleteNotification failed: %v", err)
	}
	if err := store.DeleteNotification(ctx, "user-2", "n-4"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testAudit(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	entries := []persistence.AuditEntry{
		{ID: "a-1", ActorID: "user-1", ActorKind: "REGISTERED", Action: "CREATE", EntityType: "booking", EntityID: "b-1", CreatedAt: base},
		{ID: "a-2", ActorID: "user-1", ActorKind: "REGISTERED", Action: "STATUS_CHANGE", EntityType: "booking", EntityID: "b-1",
			Details: map[string]string{"from": "PENDING", "to": "CONFIRMED"}, CreatedAt: base.Add(time.Minute)},
		{ID: "a-3", ActorID: "user-2", ActorKind: "REGISTERED", Action: "LOGIN", EntityType: "session", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, entry := range entries {
		if err := store.AppendAuditEntry(ctx, entry); err != nil {
			t.Fatalf("AppendAuditEntry failed: %v", err)
		}
	}

	all, err := store.ListAuditEntries(ctx, persistence.AuditFilter{})
	if err != nil {
		t.Fatalf("ListAuditEntries failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a-3" || all[2].ID != "a-1" {
		t.Fatalf("expected newest first, got %#v", all)
	}
	if all[1].Details["to"] != "CONFIRMED" {
		t.Fatalf("expected details to survive, got %#v", all[1].Details)
	}

	since := base.Add(30 * time.Second)
	filtered, err := store.ListAuditEntries(ctx, persistence.AuditFilter{ActorID: "user-1", Since: &since})
	if err != nil || len(filtered) != 1 || filtered[0].ID != "a-2" {
		t.Fatalf("unexpected filtered entries %#v (%v)", filtered, err)
	}

	limited, err := store.ListAuditEntries(ctx, persistence.AuditFilter{EntityType: "booking", Limit: 1})
	if err != nil || len(limited) != 1 || limited[0].ID != "a-2" {
		t.Fatalf("unexpected limited entries %#v (%v)", limited, err)
	}
}
