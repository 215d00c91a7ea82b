package application

import (
	"context"
	"log/slog"
	"time"
)

// AuditRepository appends and lists audit entries.
type AuditRepository interface {
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
	ListAuditEntries(ctx context.Context, query AuditQuery) ([]AuditEntry, error)
}

// AuditLog records audit entries without ever failing the calling operation.
type AuditLog struct {
	repo        AuditRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuditLog wraps repo as a best-effort recorder.
func NewAuditLog(repo AuditRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuditLog {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuditLog{repo: repo, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// Record stores entry. Failures are logged and swallowed.
func (a *AuditLog) Record(ctx context.Context, entry AuditEntry) {
	if a == nil || a.repo == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = a.idGenerator()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}
	if err := a.repo.AppendAuditEntry(context.WithoutCancel(ctx), entry); err != nil {
		serviceLogger(ctx, a.logger, "AuditLog", "Record",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
		).WarnContext(ctx, "failed to record audit entry", "error", err)
	}
}

// ListAuditEntries delegates to the repository.
func (a *AuditLog) ListAuditEntries(ctx context.Context, query AuditQuery) ([]AuditEntry, error) {
	if a == nil || a.repo == nil {
		return nil, nil
	}
	return a.repo.ListAuditEntries(ctx, query)
}
