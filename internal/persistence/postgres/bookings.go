package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/booking-manager/internal/persistence"
)

const bookingColumns = `id, kind, customer_name, customer_surname, event_name, phone, reservation_date, arrival_time, room,
	adults, teens, children, infants, participants, menu_type, allergies, package_label, notes, rejection_reason,
	attachments, status, creator_id, processor_id, processed_at, created_at, updated_at, revision`

// CreateBooking inserts a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.CreatorID == "" {
		return persistence.ErrConstraintViolation
	}
	attachments, err := encodeAttachments(booking.Attachments)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, 1)
	`,
		booking.ID, booking.Kind, booking.CustomerName, booking.CustomerSurname, booking.EventName, booking.Phone,
		booking.ReservationDate, booking.ArrivalTime, booking.Room,
		booking.Adults, booking.Teens, booking.Children, booking.Infants, booking.Participants,
		booking.MenuType, booking.Allergies, booking.PackageLabel, booking.Notes, booking.RejectionReason,
		attachments, booking.Status, booking.CreatorID, booking.ProcessorID, stampPtr(booking.ProcessedAt),
		stamp(booking.CreatedAt), stamp(booking.UpdatedAt),
	)
	return MapError(err)
}

// UpdateBooking replaces every mutable column of an existing booking when
// booking.Revision is still the stored one, and bumps the revision.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	attachments, err := encodeAttachments(booking.Attachments)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings SET
			kind = $1, customer_name = $2, customer_surname = $3, event_name = $4, phone = $5,
			reservation_date = $6, arrival_time = $7, room = $8,
			adults = $9, teens = $10, children = $11, infants = $12, participants = $13,
			menu_type = $14, allergies = $15, package_label = $16, notes = $17, rejection_reason = $18,
			attachments = $19, status = $20, creator_id = $21, processor_id = $22, processed_at = $23, updated_at = $24,
			revision = revision + 1
		WHERE id = $25 AND revision = $26
	`,
		booking.Kind, booking.CustomerName, booking.CustomerSurname, booking.EventName, booking.Phone,
		booking.ReservationDate, booking.ArrivalTime, booking.Room,
		booking.Adults, booking.Teens, booking.Children, booking.Infants, booking.Participants,
		booking.MenuType, booking.Allergies, booking.PackageLabel, booking.Notes, booking.RejectionReason,
		attachments, booking.Status, booking.CreatorID, booking.ProcessorID, stampPtr(booking.ProcessedAt),
		stamp(booking.UpdatedAt), booking.ID, booking.Revision,
	)
	if err != nil {
		return MapError(err)
	}
	return s.conditionalResult(ctx, tag, booking.ID)
}

// GetBooking retrieves a booking by id.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// DeleteBooking removes a booking while revision is still the stored one.
func (s *Storage) DeleteBooking(ctx context.Context, id string, revision int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1 AND revision = $2`, id, revision)
	if err != nil {
		return MapError(err)
	}
	return s.conditionalResult(ctx, tag, id)
}

func (s *Storage) conditionalResult(ctx context.Context, tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	var present int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM bookings WHERE id = $1`, id).Scan(&present)
	switch {
	case err == nil:
		return persistence.ErrStale
	case errors.Is(err, pgx.ErrNoRows):
		return persistence.ErrNotFound
	}
	return MapError(err)
}

// ListBookings returns the matching page and the unpaginated total.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, int, error) {
	var params args
	where := bookingWhere(filter, &params)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+where, params...).Scan(&total); err != nil {
		return nil, 0, MapError(err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where +
		` ORDER BY reservation_date DESC, arrival_time DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + params.add(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + params.add(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, params...)
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

func bookingWhere(filter persistence.BookingFilter, params *args) string {
	var clauses []string
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status = ANY("+params.add(filter.Statuses)+")")
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = "+params.add(filter.Kind))
	}
	if filter.Room != "" {
		clauses = append(clauses, "room = "+params.add(filter.Room))
	}
	if filter.CreatorID != "" {
		clauses = append(clauses, "creator_id = "+params.add(filter.CreatorID))
	}
	if filter.DateFrom != "" {
		clauses = append(clauses, "reservation_date >= "+params.add(filter.DateFrom))
	}
	if filter.DateTo != "" {
		clauses = append(clauses, "reservation_date <= "+params.add(filter.DateTo))
	}
	if filter.CreatedBefore != nil {
		clauses = append(clauses, "created_at <= "+params.add(stamp(*filter.CreatedBefore)))
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		clauses = append(clauses, `LOWER(customer_name || ' ' || customer_surname || ' ' || event_name || ' ' || phone) LIKE `+
			params.add("%"+escapeLike(term)+"%")+` ESCAPE '\'`)
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
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
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(raw), nil
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var (
		b           persistence.Booking
		attachments []byte
	)
	err := row.Scan(
		&b.ID, &b.Kind, &b.CustomerName, &b.CustomerSurname, &b.EventName, &b.Phone,
		&b.ReservationDate, &b.ArrivalTime, &b.Room,
		&b.Adults, &b.Teens, &b.Children, &b.Infants, &b.Participants,
		&b.MenuType, &b.Allergies, &b.PackageLabel, &b.Notes, &b.RejectionReason,
		&attachments, &b.Status, &b.CreatorID, &b.ProcessorID, &b.ProcessedAt,
		&b.CreatedAt, &b.UpdatedAt, &b.Revision,
	)
	if err != nil {
		return persistence.Booking{}, MapError(err)
	}
	if len(attachments) > 0 && string(attachments) != "[]" {
		if err := json.Unmarshal(attachments, &b.Attachments); err != nil {
			return persistence.Booking{}, fmt.Errorf("decode attachments: %w", err)
		}
		for i := range b.Attachments {
			b.Attachments[i].UploadedAt = b.Attachments[i].UploadedAt.UTC()
		}
	}
	b.ProcessedAt = utcPtr(b.ProcessedAt)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}
