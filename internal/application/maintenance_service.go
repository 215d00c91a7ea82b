package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPendingReminderAfter is how long a booking may wait before managers are reminded.
const DefaultPendingReminderAfter = 2 * time.Hour

// MaintenanceService runs the periodic booking checks.
type MaintenanceService struct {
	bookings  BookingRepository
	directory UserDirectory
	notifier  Notifier
	now       func() time.Time
	location  *time.Location
	logger    *slog.Logger
}

// NewMaintenanceService wires the periodic checks.
func NewMaintenanceService(bookings BookingRepository, directory UserDirectory, notifier Notifier, now func() time.Time, location *time.Location, logger *slog.Logger) *MaintenanceService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &MaintenanceService{
		bookings:  bookings,
		directory: directory,
		notifier:  notifier,
		now:       now,
		location:  location,
		logger:    defaultLogger(logger),
	}
}

func (s *MaintenanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MaintenanceService", operation, attrs...)
}

// RemindPending sends a HIGH priority reminder to managers for every booking
// that has been PENDING for longer than threshold.
func (s *MaintenanceService) RemindPending(ctx context.Context, threshold time.Duration) (reminded int, err error) {
	if s == nil {
		return 0, fmt.Errorf("MaintenanceService is nil")
	}
	if s.bookings == nil {
		return 0, fmt.Errorf("booking repository not configured")
	}
	if threshold <= 0 {
		threshold = DefaultPendingReminderAfter
	}

	logger := s.loggerWith(ctx, "RemindPending", "threshold", threshold.String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "pending reminder failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if reminded > 0 {
			logger.With("count", reminded).InfoContext(ctx, "pending reminders sent")
		}
	}()

	cutoff := s.now().Add(-threshold)
	var pending []Booking
	pending, _, err = s.bookings.ListBookings(ctx, BookingQuery{
		Statuses:      []BookingStatus{BookingStatusPending},
		CreatedBefore: &cutoff,
	})
	if err != nil || len(pending) == 0 {
		return
	}

	var recipients []string
	recipients, err = managerRecipients(ctx, s.directory)
	if err != nil || len(recipients) == 0 {
		return
	}

	for _, booking := range pending {
		s.notify(ctx, Dispatch{
			Recipients: recipients,
			Category:   NotificationReminder,
			Priority:   PriorityHigh,
			Title:      "Prenotazione in attesa da troppo tempo",
			Message:    fmt.Sprintf("La prenotazione di %s del %s è in attesa da più di %s", booking.DisplayName(), booking.ReservationDate, formatWait(threshold)),
			BookingID:  booking.ID,
			Status:     booking.Status,
		})
		reminded++
	}
	return
}

// FlagExpired alerts managers about PENDING bookings whose date has already passed.
func (s *MaintenanceService) FlagExpired(ctx context.Context) (expired int, err error) {
	if s == nil {
		return 0, fmt.Errorf("MaintenanceService is nil")
	}
	if s.bookings == nil {
		return 0, fmt.Errorf("booking repository not configured")
	}

	logger := s.loggerWith(ctx, "FlagExpired")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "expired booking check failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if expired > 0 {
			logger.With("count", expired).InfoContext(ctx, "expired pending bookings flagged")
		}
	}()

	yesterday := s.now().In(s.location).AddDate(0, 0, -1).Format(dateLayout)
	var stale []Booking
	stale, expired, err = s.bookings.ListBookings(ctx, BookingQuery{
		Statuses: []BookingStatus{BookingStatusPending},
		DateTo:   yesterday,
		Limit:    1,
	})
	if err != nil || expired == 0 {
		return
	}

	var recipients []string
	recipients, err = managerRecipients(ctx, s.directory)
	if err != nil {
		return
	}

	dispatch := Dispatch{
		Recipients: recipients,
		Category:   NotificationSystem,
		Priority:   PriorityUrgent,
		Title:      "Prenotazioni scadute rilevate",
		Message:    fmt.Sprintf("%d prenotazioni con data passata sono ancora in attesa di conferma", expired),
	}
	if expired == 1 && len(stale) == 1 {
		dispatch.BookingID = stale[0].ID
	}
	s.notify(ctx, dispatch)
	return
}

func (s *MaintenanceService) notify(ctx context.Context, dispatch Dispatch) {
	if s.notifier == nil || len(dispatch.Recipients) == 0 {
		return
	}
	dispatch.CreatedAt = s.now()
	s.notifier.Notify(ctx, dispatch)
}

func formatWait(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 ora"
		}
		return fmt.Sprintf("%d ore", hours)
	}
	return fmt.Sprintf("%d minuti", int(d/time.Minute))
}
