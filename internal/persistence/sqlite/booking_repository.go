package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/booking-manager/internal/persistence"
)

const bookingColumns = `id, kind, customer_name, customer_surname, event_name, phone, reservation_date, arrival_time, room,
	adults, teens, children, infants, participants, menu_type, allergies, package_label, notes, rejection_reason,
	attachments, status, creator_id, processor_id, processed_at, created_at, updated_at, revision`

// BookingRepository implements persistence.BookingRepository using SQLite
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// CreateBooking inserts a new booking
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.CreatorID == "" {
		return persistence.ErrConstraintViolation
	}
	attachments, err := encodeAttachments(booking.Attachments)
	if err != nil {
		return err
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`,
		booking.ID, booking.Kind, booking.CustomerName, booking.CustomerSurname, booking.EventName, booking.Phone,
		booking.ReservationDate, booking.ArrivalTime, booking.Room,
		booking.Adults, booking.Teens, booking.Children, booking.Infants, booking.Participants,
		booking.MenuType, booking.Allergies, booking.PackageLabel, booking.Notes, booking.RejectionReason,
		attachments, booking.Status, booking.CreatorID, booking.ProcessorID, formatTimePtr(booking.ProcessedAt),
		formatTime(booking.CreatedAt), formatTime(booking.UpdatedAt),
	)
	return MapError(err)
}

// UpdateBooking replaces every mutable column of an existing booking when
// booking.Revision is still the stored one, and bumps the revision
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	attachments, err := encodeAttachments(booking.Attachments)
	if err != nil {
		return err
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE bookings SET
			kind = ?, customer_name = ?, customer_surname = ?, event_name = ?, phone = ?,
			reservation_date = ?, arrival_time = ?, room = ?,
			adults = ?, teens = ?, children = ?, infants = ?, participants = ?,
			menu_type = ?, allergies = ?, package_label = ?, notes = ?, rejection_reason = ?,
			attachments = ?, status = ?, creator_id = ?, processor_id = ?, processed_at = ?, updated_at = ?,
			revision = revision + 1
		WHERE id = ? AND revision = ?
	`,
		booking.Kind, booking.CustomerName, booking.CustomerSurname, booking.EventName, booking.Phone,
		booking.ReservationDate, booking.ArrivalTime, booking.Room,
		booking.Adults, booking.Teens, booking.Children, booking.Infants, booking.Participants,
		booking.MenuType, booking.Allergies, booking.PackageLabel, booking.Notes, booking.RejectionReason,
		attachments, booking.Status, booking.CreatorID, booking.ProcessorID, formatTimePtr(booking.ProcessedAt),
		formatTime(booking.UpdatedAt),
		booking.ID, booking.Revision,
	)
	if err != nil {
		return MapError(err)
	}
	return r.conditionalResult(ctx, result, booking.ID)
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// DeleteBooking removes a booking while revision is still the stored one
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string, revision int64) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND revision = ?`, id, revision)
	if err != nil {
		return MapError(err)
	}
	return r.conditionalResult(ctx, result, id)
}

// conditionalResult tells a missing row apart from a revision that moved on.
func (r *BookingRepository) conditionalResult(ctx context.Context, result sql.Result, id string) error {
	err := rowsAffected(result)
	if !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	var present int
	switch scanErr := r.pool.DB().QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&present); {
	case scanErr == nil:
		return persistence.ErrStale
	case errors.Is(scanErr, sql.ErrNoRows):
		return persistence.ErrNotFound
	default:
		return MapError(scanErr)
	}
}

// ListBookings returns the matching page and the unpaginated total
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, int, error) {
	where, args := bookingWhere(filter)

	var total int
	if err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, MapError(err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where +
		` ORDER BY reservation_date DESC, arrival_time DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, MapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}
	return bookings, total, nil
}

func bookingWhere(filter persistence.BookingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Room != "" {
		clauses = append(clauses, "room = ?")
		args = append(args, filter.Room)
	}
	if filter.CreatorID != "" {
		clauses = append(clauses, "creator_id = ?")
		args = append(args, filter.CreatorID)
	}
	if filter.DateFrom != "" {
		clauses = append(clauses, "reservation_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		clauses = append(clauses, "reservation_date <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.CreatedBefore != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTime(*filter.CreatedBefore))
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		clauses = append(clauses, `LOWER(customer_name || ' ' || customer_surname || ' ' || event_name || ' ' || phone) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(term)+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

func encodeAttachments(attachments []persistence.Attachment) (string, error) {
	if len(attachments) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(raw), nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		b                    persistence.Booking
		attachments          string
		processedAt          sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&b.ID, &b.Kind, &b.CustomerName, &b.CustomerSurname, &b.EventName, &b.Phone,
		&b.ReservationDate, &b.ArrivalTime, &b.Room,
		&b.Adults, &b.Teens, &b.Children, &b.Infants, &b.Participants,
		&b.MenuType, &b.Allergies, &b.PackageLabel, &b.Notes, &b.RejectionReason,
		&attachments, &b.Status, &b.CreatorID, &b.ProcessorID, &processedAt,
		&createdAt, &updatedAt, &b.Revision,
	)
	if err != nil {
		return persistence.Booking{}, MapError(err)
	}
	if attachments != "" && attachments != "[]" {
		if err := json.Unmarshal([]byte(attachments), &b.Attachments); err != nil {
			return persistence.Booking{}, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	if b.ProcessedAt, err = parseTimePtr(processedAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse processed_at: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return b, nil
}
