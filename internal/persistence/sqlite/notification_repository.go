package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/booking-manager/internal/persistence"
)

const notificationColumns = `id, user_id, category, priority, title, message, booking_id, is_read, read_at, created_at`

// NotificationRepository implements persistence.NotificationRepository using SQLite
type NotificationRepository struct {
	pool *ConnectionPool
}

// NewNotificationRepository creates a new SQLite notification repository
func NewNotificationRepository(pool *ConnectionPool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// CreateNotifications stores a batch of inbox rows in one transaction
func (r *NotificationRepository) CreateNotifications(ctx context.Context, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return MapError(err)
		}
		defer stmt.Close()

		for _, n := range notifications {
			if n.ID == "" || n.UserID == "" {
				return persistence.ErrConstraintViolation
			}
			if _, err := stmt.ExecContext(ctx,
				n.ID, n.UserID, n.Category, n.Priority, n.Title, n.Message, n.BookingID,
				n.Read, formatTimePtr(n.ReadAt), formatTime(n.CreatedAt),
			); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
}

// ListNotifications returns a user's inbox newest first
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]persistence.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// CountUnread counts a user's unread rows
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// MarkRead flags one row as read. Marking an already read row is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string, readAt time.Time) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE notifications
		SET read_at = CASE WHEN is_read = 1 THEN read_at ELSE ? END, is_read = 1
		WHERE id = ? AND user_id = ?
	`, formatTime(readAt), id, userID)
	if err != nil {
		return MapError(err)
	}
	return rowsAffected(result)
}

// MarkAllRead flags every unread row of a user as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0
	`, formatTime(readAt), userID)
	if err != nil {
		return 0, MapError(err)
	}
	return affected(result)
}

// DeleteNotification removes one of a user's rows
func (r *NotificationRepository) DeleteNotification(ctx context.Context, userID, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return MapError(err)
	}
	return rowsAffected(result)
}

// PurgeReadBefore removes read rows whose read time precedes cutoff
func (r *NotificationRepository) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		DELETE FROM notifications WHERE is_read = 1 AND read_at IS NOT NULL AND read_at < ?
	`, formatTime(cutoff))
	if err != nil {
		return 0, MapError(err)
	}
	return affected(result)
}

func affected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func scanNotification(row rowScanner) (persistence.Notification, error) {
	var (
		n         persistence.Notification
		readAt    sql.NullString
		createdAt string
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Category, &n.Priority, &n.Title, &n.Message, &n.BookingID, &n.Read, &readAt, &createdAt)
	if err != nil {
		return persistence.Notification{}, MapError(err)
	}
	if n.ReadAt, err = parseTimePtr(readAt); err != nil {
		return persistence.Notification{}, fmt.Errorf("failed to parse read_at: %w", err)
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Notification{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return n, nil
}
