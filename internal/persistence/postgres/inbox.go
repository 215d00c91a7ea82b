package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/booking-manager/internal/persistence"
)

const notificationColumns = `id, user_id, category, priority, title, message, booking_id, is_read, read_at, created_at`

// CreateNotifications stores a batch of inbox rows in one transaction.
func (s *Storage) CreateNotifications(ctx context.Context, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	for _, n := range notifications {
		if n.ID == "" || n.UserID == "" {
			return persistence.ErrConstraintViolation
		}
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, n := range notifications {
			batch.Queue(`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				n.ID, n.UserID, n.Category, n.Priority, n.Title, n.Message, n.BookingID,
				n.Read, stampPtr(n.ReadAt), stamp(n.CreatedAt))
		}
		results := tx.SendBatch(ctx, batch)
		for range notifications {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return MapError(err)
			}
		}
		return MapError(results.Close())
	})
}

// ListNotifications returns a user's inbox newest first.
func (s *Storage) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]persistence.Notification, error) {
	params := args{userID}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ` + params.add(limit)
	}

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Notification, 0)
	for rows.Next() {
		var n persistence.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Priority, &n.Title, &n.Message, &n.BookingID, &n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		n.ReadAt = utcPtr(n.ReadAt)
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, MapError(rows.Err())
}

// CountUnread counts a user's unread rows.
func (s *Storage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count); err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// MarkRead flags one row as read. Marking an already read row is a no-op.
func (s *Storage) MarkRead(ctx context.Context, userID, id string, readAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read_at = CASE WHEN is_read THEN read_at ELSE $1 END, is_read = TRUE
		WHERE id = $2 AND user_id = $3
	`, stamp(readAt), id, userID)
	if err != nil {
		return MapError(err)
	}
	return requireRow(tag)
}

// MarkAllRead flags every unread row of a user as read.
func (s *Storage) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE user_id = $2 AND NOT is_read`,
		stamp(readAt), userID)
	if err != nil {
		return 0, MapError(err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteNotification removes one of a user's rows.
func (s *Storage) DeleteNotification(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return MapError(err)
	}
	return requireRow(tag)
}

// PurgeReadBefore removes read rows whose read time precedes cutoff.
func (s *Storage) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE is_read AND read_at IS NOT NULL AND read_at < $1`, stamp(cutoff))
	if err != nil {
		return 0, MapError(err)
	}
	return int(tag.RowsAffected()), nil
}

// AppendAuditEntry appends an entry to the trail.
func (s *Storage) AppendAuditEntry(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}
	details := "{}"
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = string(raw)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, actor_id, actor_kind, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.ActorID, entry.ActorKind, entry.Action, entry.EntityType, entry.EntityID, details, stamp(entry.CreatedAt))
	return MapError(err)
}

// ListAuditEntries returns matching entries newest first.
func (s *Storage) ListAuditEntries(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditEntry, error) {
	var (
		params  args
		clauses []string
	)
	if filter.ActorID != "" {
		clauses = append(clauses, "actor_id = "+params.add(filter.ActorID))
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = "+params.add(filter.Action))
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = "+params.add(filter.EntityType))
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= "+params.add(stamp(*filter.Since)))
	}

	query := `SELECT id, actor_id, actor_kind, action, entity_type, entity_id, details, created_at FROM audit_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + params.add(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.AuditEntry, 0)
	for rows.Next() {
		var (
			entry   persistence.AuditEntry
			details []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorKind, &entry.Action, &entry.EntityType, &entry.EntityID, &details, &entry.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		if len(details) > 0 && string(details) != "{}" {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, MapError(rows.Err())
}
