package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

const sharedSnapshotScope = "shared"

// SnapshotCache stores pulled booking sets between mutations.
type SnapshotCache interface {
	Get(ctx context.Context, scope string) (SyncSnapshot, bool)
	Store(ctx context.Context, scope string, snapshot SyncSnapshot)
	Invalidate(ctx context.Context)
}

// SyncServiceOption customises a SyncService.
type SyncServiceOption func(*SyncService)

// WithSyncCache enables caching of pull snapshots.
func WithSyncCache(cache SnapshotCache) SyncServiceOption {
	return func(s *SyncService) {
		s.cache = cache
	}
}

// WithSyncAudit wires the audit recorder.
func WithSyncAudit(audit AuditRecorder) SyncServiceOption {
	return func(s *SyncService) {
		s.audit = audit
	}
}

// WithSyncLogger overrides the base logger.
func WithSyncLogger(logger *slog.Logger) SyncServiceOption {
	return func(s *SyncService) {
		s.logger = defaultLogger(logger)
	}
}

// SyncService reconciles client held booking batches with the stored set.
// It holds no per request state.
type SyncService struct {
	bookings    BookingRepository
	idGenerator func() string
	now         func() time.Time
	cache       SnapshotCache
	audit       AuditRecorder
	logger      *slog.Logger
}

// NewSyncService wires dependencies for cross-device reconciliation.
func NewSyncService(bookings BookingRepository, idGenerator func() string, now func() time.Time, opts ...SyncServiceOption) *SyncService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	service := &SyncService{
		bookings:    bookings,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(nil),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *SyncService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SyncService", operation, attrs...)
}

// Pull returns the full shared booking set with a content version.
func (s *SyncService) Pull(ctx context.Context, actor Actor) (snapshot SyncSnapshot, err error) {
	if s == nil {
		err = fmt.Errorf("SyncService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}
	if strings.TrimSpace(actor.ID) == "" || !actor.Active {
		err = ErrForbidden
		return
	}

	logger := s.loggerWith(ctx, "Pull", "actor_id", actor.ID, "actor_kind", actor.Kind)
	cached := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sync pull failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(snapshot.Bookings), "version", snapshot.Version, "cached", cached).InfoContext(ctx, "sync pull served")
	}()

	if s.cache != nil {
		if hit, ok := s.cache.Get(ctx, sharedSnapshotScope); ok {
			cached = true
			snapshot = hit
			return
		}
	}

	var bookings []Booking
	bookings, _, err = s.bookings.ListBookings(ctx, BookingQuery{})
	if err != nil {
		return
	}

	visible := make([]Booking, 0, len(bookings))
	for _, booking := range bookings {
		if CanView(actor, booking, RequestModeSharedView) {
			visible = append(visible, booking)
		}
	}

	snapshot = SyncSnapshot{
		Bookings:    visible,
		Version:     SnapshotVersion(visible),
		GeneratedAt: s.now(),
	}
	if s.cache != nil {
		s.cache.Store(ctx, sharedSnapshotScope, snapshot)
	}
	return
}

// Push merges a batch of client snapshots using last-write-wins on the whole
// record. Items are applied one by one and a failing item never aborts the batch.
func (s *SyncService) Push(ctx context.Context, actor Actor, batch []BookingSnapshot) (result PushResult, err error) {
	if s == nil {
		err = fmt.Errorf("SyncService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}
	if strings.TrimSpace(actor.ID) == "" || !actor.Capabilities().CanCreate {
		err = ErrForbidden
		return
	}

	logger := s.loggerWith(ctx, "Push", "actor_id", actor.ID, "actor_kind", actor.Kind, "batch_size", len(batch))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sync push failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"created", result.Created,
			"updated", result.Updated,
			"skipped", result.Skipped,
			"errors", result.Errors,
		).InfoContext(ctx, "sync push applied")
	}()

	for _, item := range batch {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return
		}
		outcome, id, itemErr := s.applySnapshot(ctx, actor, item)
		if itemErr != nil {
			result.Errors++
			result.Failures = append(result.Failures, PushFailure{
				BookingID: id,
				Kind:      ErrorKind(itemErr),
				Message:   describeError(itemErr),
			})
			logger.WarnContext(ctx, "sync snapshot rejected", "booking_id", id, "error", itemErr, "error_kind", ErrorKind(itemErr))
			continue
		}
		switch outcome {
		case pushCreated:
			result.Created++
		case pushUpdated:
			result.Updated++
		case pushSkipped:
			result.Skipped++
		}
	}

	if result.Created+result.Updated > 0 && s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			ActorID:    actor.ID,
			ActorKind:  actor.Kind,
			Action:     AuditSyncPush,
			EntityType: "booking",
			Details: map[string]string{
				"created": strconv.Itoa(result.Created),
				"updated": strconv.Itoa(result.Updated),
				"skipped": strconv.Itoa(result.Skipped),
				"errors":  strconv.Itoa(result.Errors),
			},
			CreatedAt: s.now(),
		})
	}
	return
}

type pushOutcome int

const (
	pushSkipped pushOutcome = iota
	pushCreated
	pushUpdated
)

func (s *SyncService) applySnapshot(ctx context.Context, actor Actor, item BookingSnapshot) (pushOutcome, string, error) {
	id := strings.TrimSpace(item.ID)
	if item.ModifiedAt.IsZero() {
		return pushSkipped, id, newValidationError("modified_at", "Timestamp di modifica mancante")
	}

	input := normalizeBookingInput(item.Input)
	// Offline devices may legitimately replay bookings whose date has passed.
	if vErr := validateBookingInput(input, ""); vErr.HasErrors() {
		return pushSkipped, id, vErr
	}
	if id == "" {
		id = s.idGenerator()
	}

	// A concurrent push may create or rewrite the same id between our read
	// and our write; the timestamp comparison is then redone on a fresh read.
	for attempt := 1; ; attempt++ {
		outcome, err := s.writeSnapshot(ctx, actor, id, input, item.ModifiedAt)
		if err == nil {
			return outcome, id, nil
		}
		lostRace := errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
		if !lostRace || attempt == maxWriteAttempts {
			return pushSkipped, id, err
		}
	}
}

func (s *SyncService) writeSnapshot(ctx context.Context, actor Actor, id string, input BookingInput, modifiedAt time.Time) (pushOutcome, error) {
	now := s.now()
	stamp := now
	if modifiedAt.After(stamp) {
		stamp = modifiedAt
	}

	existing, err := s.bookings.GetBooking(ctx, id)
	if errors.Is(err, ErrNotFound) {
		processedAt := now
		candidate := Booking{
			ID:          id,
			Status:      BookingStatusConfirmed,
			CreatorID:   actor.ID,
			ProcessorID: actor.ID,
			ProcessedAt: &processedAt,
			CreatedAt:   now,
			UpdatedAt:   stamp,
		}
		applyBookingInput(&candidate, input)
		if err := checkBookingInvariants(candidate); err != nil {
			return pushSkipped, err
		}
		if _, err := s.bookings.CreateBooking(ctx, candidate); err != nil {
			return pushSkipped, err
		}
		return pushCreated, nil
	}
	if err != nil {
		return pushSkipped, err
	}

	if !modifiedAt.After(existing.UpdatedAt) {
		return pushSkipped, nil
	}
	if !CanModify(actor, existing) {
		return pushSkipped, ErrForbidden
	}

	updated := existing
	applyBookingInput(&updated, input)
	updated.UpdatedAt = stamp
	if err := checkBookingInvariants(updated); err != nil {
		return pushSkipped, err
	}
	if _, err := s.bookings.UpdateBooking(ctx, updated); err != nil {
		return pushSkipped, err
	}
	return pushUpdated, nil
}

// SnapshotVersion derives a stable digest of a booking set. Every stored write
// bumps a booking's revision, so the digest moves with every mutation.
func SnapshotVersion(bookings []Booking) string {
	keys := make([]string, 0, len(bookings))
	for _, booking := range bookings {
		keys = append(keys, booking.ID+"|"+strconv.FormatInt(booking.UpdatedAt.UnixNano(), 10)+"|"+
			strconv.FormatInt(booking.Revision, 10)+"|"+string(booking.Status))
	}
	sort.Strings(keys)

	hasher := blake3.New()
	for _, key := range keys {
		_, _ = hasher.Write([]byte(key))
		_, _ = hasher.Write([]byte{'\n'})
	}
	return hex.EncodeToString(hasher.Sum(nil)[:16])
}

func describeError(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		fields := make([]string, 0, len(vErr.FieldErrors))
		for field := range vErr.FieldErrors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, field+": "+vErr.FieldErrors[field])
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
