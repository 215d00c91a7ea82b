package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MaxPageSize caps the number of bookings returned per listing page.
const MaxPageSize = 100

const defaultPageSize = 20

// BookingRepository captures the persistence operations needed by the booking lifecycle.
// Every write returns the stored record including its server assigned UpdatedAt.
// UpdateBooking and DeleteBooking fail with ErrConflict when the stored
// revision no longer matches the one the caller read.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
	// DeleteBooking removes the booking only while revision is current.
	DeleteBooking(ctx context.Context, id string, revision int64) error
	// ListBookings returns matches ordered by reservation date then arrival
	// time, both descending, together with the unpaginated total.
	ListBookings(ctx context.Context, query BookingQuery) ([]Booking, int, error)
}

// UserDirectory lists registered actors for notification fan-out.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Notifier receives notifications. Implementations must not block the caller
// and must not report delivery failures.
type Notifier interface {
	Notify(ctx context.Context, dispatch Dispatch)
}

// AuditRecorder stores audit entries on a best effort basis.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// SnapshotInvalidator drops cached pull snapshots after a mutation.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context)
}

// BookingServiceOption customises a BookingService.
type BookingServiceOption func(*BookingService)

// WithBookingNotifier wires the notification dispatcher.
func WithBookingNotifier(notifier Notifier) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = notifier
	}
}

// WithBookingAudit wires the audit recorder.
func WithBookingAudit(audit AuditRecorder) BookingServiceOption {
	return func(s *BookingService) {
		s.audit = audit
	}
}

// WithBookingLogger overrides the base logger.
func WithBookingLogger(logger *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = defaultLogger(logger)
	}
}

// WithSnapshotInvalidator registers a cache that must be cleared on every mutation.
func WithSnapshotInvalidator(invalidator SnapshotInvalidator) BookingServiceOption {
	return func(s *BookingService) {
		s.invalidators = append(s.invalidators, invalidator)
	}
}

// WithBookingLocation sets the time zone used to decide what "today" is.
func WithBookingLocation(loc *time.Location) BookingServiceOption {
	return func(s *BookingService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// BookingService runs the booking lifecycle: creation, edits, status
// decisions, deletion and listing.
type BookingService struct {
	bookings     BookingRepository
	directory    UserDirectory
	idGenerator  func() string
	now          func() time.Time
	notifier     Notifier
	audit        AuditRecorder
	invalidators []SnapshotInvalidator
	location     *time.Location
	logger       *slog.Logger
}

// NewBookingService wires dependencies for the booking lifecycle.
func NewBookingService(bookings BookingRepository, directory UserDirectory, idGenerator func() string, now func() time.Time, opts ...BookingServiceOption) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	service := &BookingService{
		bookings:    bookings,
		directory:   directory,
		idGenerator: idGenerator,
		now:         now,
		location:    time.UTC,
		logger:      defaultLogger(nil),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// maxWriteAttempts bounds how often a mutation rereads a booking that another
// writer changed under it.
const maxWriteAttempts = 3

// modifyBooking loads id, lets decide build the replacement and stores it at
// the revision decide saw. When another write wins in between, decide runs
// again on a fresh read, so its checks always judge the state being replaced.
func (s *BookingService) modifyBooking(ctx context.Context, id string, decide func(existing Booking) (Booking, error)) (before, after Booking, err error) {
	for attempt := 1; ; attempt++ {
		before, err = s.loadBooking(ctx, id)
		if err != nil {
			return Booking{}, Booking{}, err
		}
		var updated Booking
		if updated, err = decide(before); err != nil {
			return Booking{}, Booking{}, err
		}
		after, err = s.bookings.UpdateBooking(ctx, updated)
		if err == nil {
			return before, after, nil
		}
		if !errors.Is(err, ErrConflict) || attempt == maxWriteAttempts {
			return Booking{}, Booking{}, err
		}
	}
}

// CreateBooking validates the draft and stores it. Actors with auto approval
// get a CONFIRMED booking; everyone else waits in PENDING and managers are notified.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking", "actor_id", params.Actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID, "status", booking.Status).InfoContext(ctx, "booking created")
	}()

	caps := params.Actor.Capabilities()
	if !caps.CanCreate {
		err = ErrForbidden
		return
	}

	input := normalizeBookingInput(params.Input)
	now := s.now()
	if vErr := validateBookingInput(input, todayIn(now, s.location)); vErr.HasErrors() {
		err = vErr
		return
	}

	candidate := Booking{
		ID:        s.idGenerator(),
		Status:    BookingStatusPending,
		CreatorID: params.Actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyBookingInput(&candidate, input)
	if caps.CanAutoApprove {
		processedAt := now
		candidate.Status = BookingStatusConfirmed
		candidate.ProcessorID = params.Actor.ID
		candidate.ProcessedAt = &processedAt
	}
	if err = checkBookingInvariants(candidate); err != nil {
		return
	}

	booking, err = s.bookings.CreateBooking(ctx, candidate)
	if err != nil {
		return
	}

	s.invalidate(ctx)
	s.record(ctx, params.Actor, AuditCreate, booking.ID, map[string]string{"status": string(booking.Status)})
	if booking.Status == BookingStatusPending {
		s.notifyManagers(ctx, Dispatch{
			Category:  NotificationNewBooking,
			Priority:  PriorityMedium,
			Title:     "Nuova prenotazione da approvare",
			Message:   fmt.Sprintf("%s ha richiesto una prenotazione per %s il %s alle %s", actorLabel(params.Actor), booking.DisplayName(), booking.ReservationDate, booking.ArrivalTime),
			BookingID: booking.ID,
			Status:    booking.Status,
		})
	}
	return
}

// GetBooking returns a single booking when the actor may view it.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, id string, mode RequestMode) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}
	if strings.TrimSpace(actor.ID) == "" {
		return Booking{}, ErrForbidden
	}

	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if !CanView(actor, booking, mode) {
		return Booking{}, ErrForbidden
	}
	return booking, nil
}

// UpdateBookingFields patches caller owned fields. Status cannot change here.
func (s *BookingService) UpdateBookingFields(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBookingFields", "actor_id", params.Actor.ID, "booking_id", params.BookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking updated")
	}()

	_, booking, err = s.modifyBooking(ctx, params.BookingID, func(existing Booking) (Booking, error) {
		if !CanModify(params.Actor, existing) {
			return Booking{}, ErrForbidden
		}

		input := normalizeBookingInput(applyBookingPatch(bookingInputFrom(existing), params.Patch))
		today := ""
		if input.ReservationDate != existing.ReservationDate {
			today = todayIn(s.now(), s.location)
		}
		if vErr := validateBookingInput(input, today); vErr.HasErrors() {
			return Booking{}, vErr
		}

		updated := existing
		applyBookingInput(&updated, input)
		updated.UpdatedAt = s.now()
		if err := checkBookingInvariants(updated); err != nil {
			return Booking{}, err
		}
		return updated, nil
	})
	if err != nil {
		return
	}

	s.invalidate(ctx)
	s.record(ctx, params.Actor, AuditUpdate, booking.ID, nil)
	if booking.CreatorID != params.Actor.ID {
		s.notify(ctx, Dispatch{
			Recipients: []string{booking.CreatorID},
			Category:   NotificationBookingModified,
			Priority:   PriorityMedium,
			Title:      "Prenotazione modificata",
			Message:    fmt.Sprintf("%s ha modificato la prenotazione %s del %s", actorLabel(params.Actor), booking.DisplayName(), booking.ReservationDate),
			BookingID:  booking.ID,
			Status:     booking.Status,
		})
	}
	return
}

// SetBookingStatus confirms or rejects a PENDING booking. Only managers may decide.
func (s *BookingService) SetBookingStatus(ctx context.Context, params SetStatusParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetBookingStatus", "actor_id", params.Actor.ID, "booking_id", params.BookingID, "target", params.Status)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking status change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking status changed")
	}()

	if !params.Actor.Capabilities().CanManageOthers {
		err = ErrForbidden
		return
	}

	target := BookingStatus(strings.ToUpper(strings.TrimSpace(string(params.Status))))
	if target != BookingStatusConfirmed && target != BookingStatusRejected {
		err = newValidationError("status", "Stato deve essere CONFIRMED o REJECTED")
		return
	}

	var existing Booking
	existing, booking, err = s.modifyBooking(ctx, params.BookingID, func(current Booking) (Booking, error) {
		if current.Status != BookingStatusPending {
			return Booking{}, ErrInvalidTransition
		}

		reason := strings.TrimSpace(params.RejectionReason)
		if target == BookingStatusRejected {
			if vErr := validateRejectionReason(reason); vErr.HasErrors() {
				return Booking{}, vErr
			}
		} else {
			reason = ""
		}

		now := s.now()
		updated := current
		updated.Status = target
		updated.RejectionReason = reason
		updated.ProcessorID = params.Actor.ID
		updated.ProcessedAt = &now
		updated.UpdatedAt = now
		if err := checkBookingInvariants(updated); err != nil {
			return Booking{}, err
		}
		return updated, nil
	})
	if err != nil {
		return
	}

	s.invalidate(ctx)
	s.record(ctx, params.Actor, AuditStatusChange, booking.ID, map[string]string{
		"from": string(existing.Status),
		"to":   string(booking.Status),
	})

	dispatch := Dispatch{
		Recipients: []string{booking.CreatorID},
		Category:   NotificationStatusChanged,
		Priority:   PriorityHigh,
		BookingID:  booking.ID,
		Status:     booking.Status,
	}
	if booking.Status == BookingStatusConfirmed {
		dispatch.Title = "Prenotazione confermata"
		dispatch.Message = fmt.Sprintf("La prenotazione %s del %s alle %s è stata confermata", booking.DisplayName(), booking.ReservationDate, booking.ArrivalTime)
	} else {
		dispatch.Title = "Prenotazione rifiutata"
		dispatch.Message = fmt.Sprintf("La prenotazione %s del %s è stata rifiutata: %s", booking.DisplayName(), booking.ReservationDate, booking.RejectionReason)
	}
	s.notify(ctx, dispatch)
	return
}

// DeleteBooking removes a booking and its attachment references.
func (s *BookingService) DeleteBooking(ctx context.Context, actor Actor, id string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteBooking", "actor_id", actor.ID, "booking_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking deletion failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	var existing Booking
	for attempt := 1; ; attempt++ {
		existing, err = s.loadBooking(ctx, id)
		if err != nil {
			return
		}
		if !CanModify(actor, existing) {
			err = ErrForbidden
			return
		}
		err = s.bookings.DeleteBooking(ctx, existing.ID, existing.Revision)
		if err == nil {
			break
		}
		if errors.Is(err, ErrNotFound) {
			err = ErrNotFound
			return
		}
		if !errors.Is(err, ErrConflict) || attempt == maxWriteAttempts {
			return
		}
	}

	s.invalidate(ctx)
	s.record(ctx, actor, AuditDelete, existing.ID, map[string]string{
		"status":      string(existing.Status),
		"attachments": fmt.Sprint(len(existing.Attachments)),
	})
	s.notifyManagers(ctx, Dispatch{
		Category:  NotificationBookingCancelled,
		Priority:  PriorityMedium,
		Title:     "Prenotazione cancellata",
		Message:   fmt.Sprintf("%s ha cancellato la prenotazione %s del %s", actorLabel(actor), existing.DisplayName(), existing.ReservationDate),
		BookingID: existing.ID,
		Status:    existing.Status,
	})
	return nil
}

// AddAttachment registers an uploaded file on a booking.
func (s *BookingService) AddAttachment(ctx context.Context, params AddAttachmentParams) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}

	attachment := params.Attachment
	attachment.Filename = strings.TrimSpace(attachment.Filename)
	if attachment.Filename == "" {
		return Booking{}, newValidationError("filename", "Nome file è richiesto")
	}
	if attachment.OriginalName == "" {
		attachment.OriginalName = attachment.Filename
	}

	_, persisted, err := s.modifyBooking(ctx, params.BookingID, func(existing Booking) (Booking, error) {
		if !CanModify(params.Actor, existing) {
			return Booking{}, ErrForbidden
		}
		for _, current := range existing.Attachments {
			if current.Filename == attachment.Filename {
				return Booking{}, ErrAlreadyExists
			}
		}
		now := s.now()
		added := attachment
		if added.UploadedAt.IsZero() {
			added.UploadedAt = now
		}

		updated := existing
		updated.Attachments = append(cloneAttachments(existing.Attachments), added)
		updated.UpdatedAt = now
		return updated, nil
	})
	if err != nil {
		return Booking{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, params.Actor, AuditUpdate, persisted.ID, map[string]string{"attachment_added": attachment.Filename})
	return persisted, nil
}

// RemoveAttachment drops the attachment with the given filename.
func (s *BookingService) RemoveAttachment(ctx context.Context, actor Actor, bookingID, filename string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}

	_, persisted, err := s.modifyBooking(ctx, bookingID, func(existing Booking) (Booking, error) {
		if !CanModify(actor, existing) {
			return Booking{}, ErrForbidden
		}

		remaining := make([]Attachment, 0, len(existing.Attachments))
		found := false
		for _, attachment := range existing.Attachments {
			if attachment.Filename == filename {
				found = true
				continue
			}
			remaining = append(remaining, attachment)
		}
		if !found {
			return Booking{}, ErrNotFound
		}

		updated := existing
		updated.Attachments = remaining
		updated.UpdatedAt = s.now()
		return updated, nil
	})
	if err != nil {
		return Booking{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, actor, AuditUpdate, persisted.ID, map[string]string{"attachment_removed": filename})
	return persisted, nil
}

// ListBookings applies visibility for the request mode and then the filters.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (page BookingPage, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}
	if strings.TrimSpace(params.Actor.ID) == "" || !params.Actor.Active {
		err = ErrForbidden
		return
	}

	mode := params.Mode
	if mode == "" {
		mode = RequestModePersonal
	}

	logger := s.loggerWith(ctx, "ListBookings", "actor_id", params.Actor.ID, "mode", mode)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking listing failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(page.Bookings), "total", page.Total).InfoContext(ctx, "bookings listed")
	}()

	filter := params.Filter
	var query BookingQuery
	query, err = queryFromFilter(filter)
	if err != nil {
		return
	}

	caps := params.Actor.Capabilities()
	switch {
	case mode == RequestModePersonal && !caps.CanViewAllBookings:
		query.CreatorID = params.Actor.ID
	case caps.CanViewAllBookings:
		query.CreatorID = strings.TrimSpace(filter.CreatorID)
	}

	pageNumber, limit := normalizePagination(filter.Page, filter.Limit)
	query.Offset = (pageNumber - 1) * limit
	query.Limit = limit

	var bookings []Booking
	var total int
	bookings, total, err = s.bookings.ListBookings(ctx, query)
	if err != nil {
		return
	}

	page = BookingPage{Bookings: bookings, Total: total, Page: pageNumber, Limit: limit}
	return
}

// ListMyBookings returns the actor's own bookings regardless of tier.
func (s *BookingService) ListMyBookings(ctx context.Context, actor Actor, filter BookingFilter) (BookingPage, error) {
	if s == nil {
		return BookingPage{}, fmt.Errorf("BookingService is nil")
	}
	filter.CreatorID = actor.ID
	// Managers skip the personal scope in ListBookings; the creator filter
	// keeps their history limited to their own records.
	return s.ListBookings(ctx, ListBookingsParams{Actor: actor, Mode: RequestModePersonal, Filter: filter})
}

// Stats aggregates every booking matching filter. Only actors that can view
// all bookings may ask; paging fields are ignored.
func (s *BookingService) Stats(ctx context.Context, actor Actor, filter BookingFilter) (stats BookingStats, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}
	if !actor.Active || !actor.Capabilities().CanViewAllBookings {
		err = ErrForbidden
		return
	}

	var query BookingQuery
	query, err = queryFromFilter(filter)
	if err != nil {
		return
	}
	query.CreatorID = strings.TrimSpace(filter.CreatorID)

	var bookings []Booking
	bookings, _, err = s.bookings.ListBookings(ctx, query)
	if err != nil {
		return
	}
	stats = summarizeBookings(bookings)
	s.loggerWith(ctx, "Stats", "actor_id", actor.ID).With("total", stats.Total).DebugContext(ctx, "booking stats computed")
	return
}

func queryFromFilter(filter BookingFilter) (BookingQuery, error) {
	if vErr := validateDateRange(filter.DateFrom, filter.DateTo); vErr.HasErrors() {
		return BookingQuery{}, vErr
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return BookingQuery{}, newValidationError("status", "Stato non valido")
		}
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return BookingQuery{}, newValidationError("kind", "Tipo non valido")
	}
	if filter.Room != "" && !filter.Room.Valid() {
		return BookingQuery{}, newValidationError("room", "Sala non valida")
	}
	return BookingQuery{
		Statuses: append([]BookingStatus(nil), filter.Statuses...),
		Kind:     filter.Kind,
		Room:     filter.Room,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
		Search:   strings.TrimSpace(filter.Search),
	}, nil
}

// summarizeBookings counts bookings per status, kind and room and sums the
// headcount. Every status and kind key is present even when zero.
func summarizeBookings(bookings []Booking) BookingStats {
	stats := BookingStats{
		ByStatus: map[BookingStatus]int{
			BookingStatusPending:   0,
			BookingStatusConfirmed: 0,
			BookingStatusRejected:  0,
		},
		ByKind: map[BookingKind]int{
			BookingKindStandard: 0,
			BookingKindEvent:    0,
		},
		ByRoom: map[Room]int{},
	}
	for _, b := range bookings {
		stats.Total++
		stats.Headcount += b.Headcount()
		stats.ByStatus[b.Status]++
		stats.ByKind[b.Kind]++
		if b.Room != "" {
			stats.ByRoom[b.Room]++
		}
	}
	return stats
}

func (s *BookingService) loadBooking(ctx context.Context, id string) (Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Booking{}, ErrNotFound
	}
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return booking, nil
}

func (s *BookingService) invalidate(ctx context.Context) {
	for _, invalidator := range s.invalidators {
		if invalidator != nil {
			invalidator.Invalidate(ctx)
		}
	}
}

func (s *BookingService) record(ctx context.Context, actor Actor, action AuditAction, bookingID string, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:    actor.ID,
		ActorKind:  actor.Kind,
		Action:     action,
		EntityType: "booking",
		EntityID:   bookingID,
		Details:    details,
		CreatedAt:  s.now(),
	})
}

func (s *BookingService) notify(ctx context.Context, dispatch Dispatch) {
	if s.notifier == nil || len(dispatch.Recipients) == 0 {
		return
	}
	if dispatch.CreatedAt.IsZero() {
		dispatch.CreatedAt = s.now()
	}
	s.notifier.Notify(ctx, dispatch)
}

// notifyManagers addresses dispatch to every registered actor that can view
// all bookings. The acting manager is included so every manager inbox holds
// the same history.
func (s *BookingService) notifyManagers(ctx context.Context, dispatch Dispatch) {
	if s.notifier == nil {
		return
	}
	recipients, err := managerRecipients(ctx, s.directory)
	if err != nil {
		s.loggerWith(ctx, "notifyManagers").WarnContext(ctx, "failed to resolve notification recipients", "error", err)
		return
	}
	dispatch.Recipients = recipients
	s.notify(ctx, dispatch)
}

func managerRecipients(ctx context.Context, directory UserDirectory) ([]string, error) {
	if directory == nil {
		return nil, nil
	}
	users, err := directory.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	recipients := make([]string, 0, len(users))
	for _, user := range users {
		if NewRegisteredActor(user).Capabilities().CanViewAllBookings {
			recipients = append(recipients, user.ID)
		}
	}
	return recipients, nil
}

func normalizePagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func actorLabel(actor Actor) string {
	if name := strings.TrimSpace(actor.DisplayName); name != "" {
		return name
	}
	return actor.ID
}

func cloneAttachments(in []Attachment) []Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
