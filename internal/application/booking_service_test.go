package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/booking-manager/internal/permission"
)

var bookingTestNow = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

type bookingHarness struct {
	repo        *bookingRepositoryStub
	directory   *userDirectoryStub
	notifier    *notifierRecorder
	audit       *auditRecorderStub
	invalidator *invalidatorStub
	service     *BookingService
}

func newBookingHarness(users ...User) *bookingHarness {
	h := &bookingHarness{
		repo:        newBookingRepositoryStub(),
		directory:   newUserDirectoryStub(users...),
		notifier:    &notifierRecorder{},
		audit:       &auditRecorderStub{},
		invalidator: &invalidatorStub{},
	}
	h.service = NewBookingService(h.repo, h.directory, sequenceIDs("booking"), fixedClock(bookingTestNow),
		WithBookingNotifier(h.notifier),
		WithBookingAudit(h.audit),
		WithSnapshotInvalidator(h.invalidator),
	)
	return h
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	authorized := staffUser("bruno", permission.TierAuthorized)
	manager := staffUser("carla", permission.TierAdminSecondary)
	admin := adminUser("dario")

	t.Run("base tier yields pending booking without processor", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager, admin)

		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{
			Actor: actorFor(base),
			Input: standardInput("2024-12-10", "19:30"),
		})
		require.NoError(t, err)

		assert.Equal(t, BookingStatusPending, booking.Status)
		assert.Empty(t, booking.ProcessorID)
		assert.Nil(t, booking.ProcessedAt)
		assert.Equal(t, base.ID, booking.CreatorID)
		assert.Equal(t, "Rossi", booking.CustomerSurname)
		assert.Equal(t, 4, booking.Headcount())

		dispatches := h.notifier.all()
		require.Len(t, dispatches, 1)
		assert.Equal(t, NotificationNewBooking, dispatches[0].Category)
		assert.ElementsMatch(t, []string{manager.ID, admin.ID}, dispatches[0].Recipients)
		assert.Equal(t, []AuditAction{AuditCreate}, h.audit.actions())
		assert.Equal(t, 1, h.invalidator.count())
	})

	for _, user := range []User{authorized, manager, admin} {
		user := user
		t.Run("auto approves for "+string(user.Tier), func(t *testing.T) {
			t.Parallel()
			h := newBookingHarness(user)

			booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{
				Actor: actorFor(user),
				Input: standardInput("2024-12-10", "20:00"),
			})
			require.NoError(t, err)

			assert.Equal(t, BookingStatusConfirmed, booking.Status)
			assert.Equal(t, user.ID, booking.ProcessorID)
			require.NotNil(t, booking.ProcessedAt)
			assert.True(t, booking.ProcessedAt.Equal(bookingTestNow))
			assert.Empty(t, h.notifier.all(), "confirmed bookings do not notify managers")
		})
	}

	t.Run("rejects past dates", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base)

		_, err := h.service.CreateBooking(context.Background(), CreateBookingParams{
			Actor: actorFor(base),
			Input: standardInput("2024-11-30", "19:30"),
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "reservation_date")
		assert.Empty(t, h.repo.bookings)
	})

	t.Run("validates event specific fields", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base)

		input := eventInput("2024-12-20")
		input.Participants = 0
		input.MenuType = ""

		_, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: input})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "participants")
		assert.Contains(t, vErr.FieldErrors, "menu_type")
	})

	t.Run("denies actors without capabilities", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness()

		_, err := h.service.CreateBooking(context.Background(), CreateBookingParams{
			Actor: Actor{Kind: ActorRegistered, Role: permission.RoleStaff, Tier: permission.TierBase, Active: true},
			Input: standardInput("2024-12-10", "19:30"),
		})
		assert.ErrorIs(t, err, ErrForbidden)

		inactive := actorFor(base)
		inactive.Active = false
		_, err = h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: inactive, Input: standardInput("2024-12-10", "19:30")})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("propagates repository failures without side effects", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		h.repo.createErr = errors.New("disk full")

		_, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-10", "19:30")})
		assert.EqualError(t, err, "disk full")
		assert.Empty(t, h.notifier.all())
		assert.Zero(t, h.invalidator.count())
	})
}

func TestBookingService_SetBookingStatus(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	manager := staffUser("bruno", permission.TierAdminSecondary)

	setup := func(t *testing.T) (*bookingHarness, Booking) {
		t.Helper()
		h := newBookingHarness(base, manager)
		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{
			Actor: actorFor(base),
			Input: standardInput("2024-12-10", "19:30"),
		})
		require.NoError(t, err)
		return h, booking
	}

	t.Run("rejection requires a reason", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)

		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{
			Actor:     actorFor(manager),
			BookingID: booking.ID,
			Status:    BookingStatusRejected,
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "rejection_reason")

		stored, _ := h.repo.get(booking.ID)
		assert.Equal(t, BookingStatusPending, stored.Status)

		rejected, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{
			Actor:           actorFor(manager),
			BookingID:       booking.ID,
			Status:          BookingStatusRejected,
			RejectionReason: "no space",
		})
		require.NoError(t, err)
		assert.Equal(t, BookingStatusRejected, rejected.Status)
		assert.Equal(t, "no space", rejected.RejectionReason)
		assert.Equal(t, manager.ID, rejected.ProcessorID)
		require.NotNil(t, rejected.ProcessedAt)

		dispatches := h.notifier.all()
		last := dispatches[len(dispatches)-1]
		assert.Equal(t, NotificationStatusChanged, last.Category)
		assert.Equal(t, []string{base.ID}, last.Recipients)
		assert.Equal(t, BookingStatusRejected, last.Status)
	})

	t.Run("second decision is an invalid transition", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)

		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(manager), BookingID: booking.ID, Status: BookingStatusConfirmed})
		require.NoError(t, err)

		_, err = h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(manager), BookingID: booking.ID, Status: BookingStatusRejected, RejectionReason: "changed mind"})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		stored, _ := h.repo.get(booking.ID)
		assert.Equal(t, BookingStatusConfirmed, stored.Status)
		assert.Empty(t, stored.RejectionReason)
	})

	t.Run("requires manage others", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)

		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(base), BookingID: booking.ID, Status: BookingStatusConfirmed})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("rejects unknown targets", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)

		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(manager), BookingID: booking.ID, Status: BookingStatusPending})
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown booking", func(t *testing.T) {
		t.Parallel()
		h, _ := setup(t)

		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(manager), BookingID: "missing", Status: BookingStatusConfirmed})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBookingService_UpdateBookingFields(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	other := staffUser("elena", permission.TierBase)
	manager := staffUser("bruno", permission.TierAdminSecondary)

	setup := func(t *testing.T) (*bookingHarness, Booking) {
		t.Helper()
		h := newBookingHarness(base, other, manager)
		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-10", "19:30")})
		require.NoError(t, err)
		return h, booking
	}

	t.Run("creator edits pending booking", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)
		adults := 6
		at := "9:05"

		updated, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{
			Actor:     actorFor(base),
			BookingID: booking.ID,
			Patch:     BookingPatch{Adults: &adults, ArrivalTime: &at},
		})
		require.NoError(t, err)
		assert.Equal(t, 6, updated.Adults)
		assert.Equal(t, "09:05", updated.ArrivalTime)
		assert.Equal(t, BookingStatusPending, updated.Status)
	})

	t.Run("re-validates the whole record", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)
		adults := 201

		_, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{Actor: actorFor(base), BookingID: booking.ID, Patch: BookingPatch{Adults: &adults}})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "adults")

		stored, _ := h.repo.get(booking.ID)
		assert.Equal(t, 4, stored.Adults)
	})

	t.Run("creator loses edit rights after decision", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)
		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(manager), BookingID: booking.ID, Status: BookingStatusConfirmed})
		require.NoError(t, err)

		notes := "late arrival"
		_, err = h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{Actor: actorFor(base), BookingID: booking.ID, Patch: BookingPatch{Notes: &notes}})
		assert.ErrorIs(t, err, ErrForbidden)

		updated, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{Actor: actorFor(manager), BookingID: booking.ID, Patch: BookingPatch{Notes: &notes}})
		require.NoError(t, err)
		assert.Equal(t, "late arrival", updated.Notes)
		assert.Equal(t, BookingStatusConfirmed, updated.Status)

		last := h.notifier.all()[len(h.notifier.all())-1]
		assert.Equal(t, NotificationBookingModified, last.Category)
		assert.Equal(t, []string{base.ID}, last.Recipients)
	})

	t.Run("other staff cannot edit", func(t *testing.T) {
		t.Parallel()
		h, booking := setup(t)
		notes := "hijack"

		_, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{Actor: actorFor(other), BookingID: booking.ID, Patch: BookingPatch{Notes: &notes}})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("past date check only applies when the date changes", func(t *testing.T) {
		t.Parallel()
		past := Booking{
			ID: "old", Kind: BookingKindStandard, CustomerName: "Luca", CustomerSurname: "Bianchi",
			Phone: "0521 654321", ReservationDate: "2024-11-20", ArrivalTime: "12:30", Adults: 2,
			Status: BookingStatusPending, CreatorID: base.ID,
		}
		h := newBookingHarness(base)
		h.repo.bookings[past.ID] = past

		notes := "allergia"
		_, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{Actor: actorFor(base), BookingID: past.ID, Patch: BookingPatch{Notes: &notes}})
		require.NoError(t, err)

		date := "2024-11-21"
		_, err = h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{Actor: actorFor(base), BookingID: past.ID, Patch: BookingPatch{ReservationDate: &date}})
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestBookingService_DeleteBooking(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	manager := staffUser("bruno", permission.TierAdminSecondary)

	t.Run("creator deletes pending booking and managers are told", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-10", "19:30")})
		require.NoError(t, err)

		require.NoError(t, h.service.DeleteBooking(context.Background(), actorFor(base), booking.ID))
		_, exists := h.repo.get(booking.ID)
		assert.False(t, exists)

		last := h.notifier.all()[len(h.notifier.all())-1]
		assert.Equal(t, NotificationBookingCancelled, last.Category)
		assert.Equal(t, []string{manager.ID}, last.Recipients)
		assert.Contains(t, h.audit.actions(), AuditDelete)
	})

	t.Run("acting manager keeps a copy of the cancellation", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-11", "20:00")})
		require.NoError(t, err)

		require.NoError(t, h.service.DeleteBooking(context.Background(), actorFor(manager), booking.ID))

		last := h.notifier.all()[len(h.notifier.all())-1]
		assert.Equal(t, NotificationBookingCancelled, last.Category)
		assert.Equal(t, []string{manager.ID}, last.Recipients)
	})

	t.Run("creator cannot delete confirmed booking", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-10", "19:30")})
		require.NoError(t, err)
		_, err = h.service.SetBookingStatus(context.Background(), SetStatusParams{Actor: actorFor(manager), BookingID: booking.ID, Status: BookingStatusConfirmed})
		require.NoError(t, err)

		err = h.service.DeleteBooking(context.Background(), actorFor(base), booking.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		require.NoError(t, h.service.DeleteBooking(context.Background(), actorFor(manager), booking.ID))
	})

	t.Run("missing booking", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base)
		assert.ErrorIs(t, h.service.DeleteBooking(context.Background(), actorFor(base), "nope"), ErrNotFound)
	})
}

func TestBookingService_Attachments(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	h := newBookingHarness(base)
	booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-10", "19:30")})
	require.NoError(t, err)

	withFile, err := h.service.AddAttachment(context.Background(), AddAttachmentParams{
		Actor:      actorFor(base),
		BookingID:  booking.ID,
		Attachment: Attachment{Filename: "menu-1.pdf", MimeType: "application/pdf", Size: 2048, URL: "/uploads/menu-1.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, withFile.Attachments, 1)
	assert.Equal(t, "menu-1.pdf", withFile.Attachments[0].OriginalName)
	assert.Equal(t, BookingStatusPending, withFile.Status)

	_, err = h.service.AddAttachment(context.Background(), AddAttachmentParams{Actor: actorFor(base), BookingID: booking.ID, Attachment: Attachment{Filename: "menu-1.pdf"}})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = h.service.RemoveAttachment(context.Background(), actorFor(base), booking.ID, "other.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	cleared, err := h.service.RemoveAttachment(context.Background(), actorFor(base), booking.ID, "menu-1.pdf")
	require.NoError(t, err)
	assert.Empty(t, cleared.Attachments)
}

func TestBookingService_ListBookings(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	other := staffUser("elena", permission.TierBase)
	manager := staffUser("bruno", permission.TierAdminSecondary)

	seed := []Booking{
		{ID: "b1", Kind: BookingKindStandard, CustomerName: "Mario", CustomerSurname: "Rossi", ReservationDate: "2024-12-10", ArrivalTime: "19:30", Status: BookingStatusPending, CreatorID: base.ID},
		{ID: "b2", Kind: BookingKindStandard, CustomerName: "Luca", CustomerSurname: "Verdi", ReservationDate: "2024-12-10", ArrivalTime: "21:00", Status: BookingStatusConfirmed, CreatorID: other.ID},
		{ID: "b3", Kind: BookingKindEvent, EventName: "Laurea", ReservationDate: "2024-12-12", ArrivalTime: "12:00", Status: BookingStatusPending, CreatorID: base.ID},
	}

	newService := func() *BookingService {
		return NewBookingService(newBookingRepositoryStub(seed...), nil, nil, fixedClock(bookingTestNow))
	}

	ids := func(page BookingPage) []string {
		out := make([]string, 0, len(page.Bookings))
		for _, b := range page.Bookings {
			out = append(out, b.ID)
		}
		return out
	}

	t.Run("personal mode scopes to creator", func(t *testing.T) {
		t.Parallel()
		page, err := newService().ListBookings(context.Background(), ListBookingsParams{Actor: actorFor(base), Mode: RequestModePersonal})
		require.NoError(t, err)
		assert.Equal(t, []string{"b3", "b1"}, ids(page))
		assert.Equal(t, 2, page.Total)
	})

	t.Run("shared view returns the whole pool", func(t *testing.T) {
		t.Parallel()
		page, err := newService().ListBookings(context.Background(), ListBookingsParams{Actor: actorFor(base), Mode: RequestModeSharedView})
		require.NoError(t, err)
		assert.Equal(t, []string{"b3", "b2", "b1"}, ids(page))
	})

	t.Run("managers see everything and may filter by creator", func(t *testing.T) {
		t.Parallel()
		page, err := newService().ListBookings(context.Background(), ListBookingsParams{Actor: actorFor(manager), Filter: BookingFilter{CreatorID: other.ID}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b2"}, ids(page))

		history, err := newService().ListMyBookings(context.Background(), actorFor(manager), BookingFilter{})
		require.NoError(t, err)
		assert.Empty(t, history.Bookings)
	})

	t.Run("creator filter cannot widen personal scope", func(t *testing.T) {
		t.Parallel()
		page, err := newService().ListBookings(context.Background(), ListBookingsParams{Actor: actorFor(base), Filter: BookingFilter{CreatorID: other.ID}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b3", "b1"}, ids(page))
	})

	t.Run("filters and pagination", func(t *testing.T) {
		t.Parallel()
		page, err := newService().ListBookings(context.Background(), ListBookingsParams{
			Actor:  actorFor(manager),
			Filter: BookingFilter{Statuses: []BookingStatus{BookingStatusPending}, Page: 2, Limit: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(page))
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, 2, page.Page)

		page, err = newService().ListBookings(context.Background(), ListBookingsParams{Actor: actorFor(manager), Filter: BookingFilter{Limit: 1000}})
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, page.Limit)
	})

	t.Run("rejects inverted date range", func(t *testing.T) {
		t.Parallel()
		_, err := newService().ListBookings(context.Background(), ListBookingsParams{Actor: actorFor(manager), Filter: BookingFilter{DateFrom: "2024-12-12", DateTo: "2024-12-01"}})
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("anonymous actor is denied", func(t *testing.T) {
		t.Parallel()
		_, err := newService().ListBookings(context.Background(), ListBookingsParams{Actor: Actor{}})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestBookingService_NilReceiver(t *testing.T) {
	t.Parallel()

	var svc *BookingService
	_, err := svc.CreateBooking(context.Background(), CreateBookingParams{})
	assert.EqualError(t, err, "BookingService is nil")
}

func TestBookingService_ConcurrentWritesNeverUndoDecisions(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	manager := staffUser("carla", permission.TierAdminSecondary)
	other := staffUser("elena", permission.TierAdminSecondary)

	pending := func(t *testing.T, h *bookingHarness) Booking {
		t.Helper()
		booking, err := h.service.CreateBooking(context.Background(), CreateBookingParams{
			Actor: actorFor(base),
			Input: standardInput("2024-12-10", "19:30"),
		})
		require.NoError(t, err)
		require.Equal(t, BookingStatusPending, booking.Status)
		return booking
	}
	confirmBy := func(t *testing.T, h *bookingHarness, user User, id string) {
		t.Helper()
		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{
			Actor:     actorFor(user),
			BookingID: id,
			Status:    BookingStatusConfirmed,
		})
		require.NoError(t, err)
	}

	t.Run("creator edit read before a confirmation cannot revert it", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		booking := pending(t, h)

		h.repo.interleaveOnce(booking.ID, func() { confirmBy(t, h, manager, booking.ID) })

		adults := 8
		_, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{
			Actor:     actorFor(base),
			BookingID: booking.ID,
			Patch:     BookingPatch{Adults: &adults},
		})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 1, h.repo.conflictCount())

		stored, ok := h.repo.get(booking.ID)
		require.True(t, ok)
		assert.Equal(t, BookingStatusConfirmed, stored.Status)
		assert.Equal(t, manager.ID, stored.ProcessorID)
		assert.NotNil(t, stored.ProcessedAt)
		assert.Equal(t, 4, stored.Adults)
	})

	t.Run("only one of two simultaneous decisions wins", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager, other)
		booking := pending(t, h)

		h.repo.interleaveOnce(booking.ID, func() {
			_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{
				Actor:           actorFor(other),
				BookingID:       booking.ID,
				Status:          BookingStatusRejected,
				RejectionReason: "Sala al completo",
			})
			require.NoError(t, err)
		})

		_, err := h.service.SetBookingStatus(context.Background(), SetStatusParams{
			Actor:     actorFor(manager),
			BookingID: booking.ID,
			Status:    BookingStatusConfirmed,
		})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		stored, _ := h.repo.get(booking.ID)
		assert.Equal(t, BookingStatusRejected, stored.Status)
		assert.Equal(t, other.ID, stored.ProcessorID)
		assert.Equal(t, "Sala al completo", stored.RejectionReason)
	})

	t.Run("creator delete read before a confirmation is refused", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		booking := pending(t, h)

		h.repo.interleaveOnce(booking.ID, func() { confirmBy(t, h, manager, booking.ID) })

		err := h.service.DeleteBooking(context.Background(), actorFor(base), booking.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		stored, ok := h.repo.get(booking.ID)
		require.True(t, ok)
		assert.Equal(t, BookingStatusConfirmed, stored.Status)
	})

	t.Run("attachment added while another edit lands keeps both", func(t *testing.T) {
		t.Parallel()
		h := newBookingHarness(base, manager)
		booking := pending(t, h)

		notes := "Tavolo vicino alla finestra"
		h.repo.interleaveOnce(booking.ID, func() {
			_, err := h.service.UpdateBookingFields(context.Background(), UpdateBookingParams{
				Actor:     actorFor(manager),
				BookingID: booking.ID,
				Patch:     BookingPatch{Notes: &notes},
			})
			require.NoError(t, err)
		})

		updated, err := h.service.AddAttachment(context.Background(), AddAttachmentParams{
			Actor:      actorFor(base),
			BookingID:  booking.ID,
			Attachment: Attachment{Filename: "menu.pdf", MimeType: "application/pdf"},
		})
		require.NoError(t, err)
		assert.Equal(t, notes, updated.Notes)
		require.Len(t, updated.Attachments, 1)
		assert.Equal(t, int64(3), updated.Revision)
	})
}

func TestBookingService_Stats(t *testing.T) {
	t.Parallel()

	base := staffUser("anna", permission.TierBase)
	manager := staffUser("bruno", permission.TierAdminSecondary)
	h := newBookingHarness(base, manager)
	ctx := context.Background()

	_, err := h.service.CreateBooking(ctx, CreateBookingParams{Actor: actorFor(base), Input: standardInput("2024-12-10", "19:30")})
	require.NoError(t, err)
	_, err = h.service.CreateBooking(ctx, CreateBookingParams{Actor: actorFor(manager), Input: standardInput("2024-12-11", "20:00")})
	require.NoError(t, err)
	_, err = h.service.CreateBooking(ctx, CreateBookingParams{Actor: actorFor(manager), Input: eventInput("2024-12-20")})
	require.NoError(t, err)

	stats, err := h.service.Stats(ctx, actorFor(manager), BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 48, stats.Headcount)
	assert.Equal(t, 1, stats.ByStatus[BookingStatusPending])
	assert.Equal(t, 2, stats.ByStatus[BookingStatusConfirmed])
	assert.Equal(t, 0, stats.ByStatus[BookingStatusRejected])
	assert.Equal(t, 2, stats.ByKind[BookingKindStandard])
	assert.Equal(t, 1, stats.ByKind[BookingKindEvent])
	assert.Equal(t, 2, stats.ByRoom[RoomGlass])
	assert.Equal(t, 1, stats.ByRoom[RoomPool])

	narrowed, err := h.service.Stats(ctx, actorFor(manager), BookingFilter{DateFrom: "2024-12-11", DateTo: "2024-12-31", Kind: BookingKindStandard})
	require.NoError(t, err)
	assert.Equal(t, 1, narrowed.Total)
	assert.Equal(t, 4, narrowed.Headcount)

	_, err = h.service.Stats(ctx, actorFor(manager), BookingFilter{DateFrom: "2024-12-31", DateTo: "2024-12-01"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = h.service.Stats(ctx, actorFor(base), BookingFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}
