package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/booking-manager/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite
type AuditRepository struct {
	pool *ConnectionPool
}

// NewAuditRepository creates a new SQLite audit repository
func NewAuditRepository(pool *ConnectionPool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// AppendAuditEntry appends an entry to the trail
func (r *AuditRepository) AppendAuditEntry(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}
	details := "{}"
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = string(raw)
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO audit_entries (id, actor_id, actor_kind, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ActorID, entry.ActorKind, entry.Action, entry.EntityType, entry.EntityID, details, formatTime(entry.CreatedAt))
	return MapError(err)
}

// ListAuditEntries returns matching entries newest first
func (r *AuditRepository) ListAuditEntries(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ActorID != "" {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}

	query := `SELECT id, actor_id, actor_kind, action, entity_type, entity_id, details, created_at FROM audit_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.AuditEntry, 0)
	for rows.Next() {
		var (
			entry              persistence.AuditEntry
			details, createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorKind, &entry.Action, &entry.EntityType, &entry.EntityID, &details, &createdAt); err != nil {
			return nil, MapError(err)
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}
