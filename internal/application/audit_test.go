package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type auditRepositoryStub struct {
	appended  []AuditEntry
	appendErr error
	ctxErr    error
}

func (r *auditRepositoryStub) AppendAuditEntry(ctx context.Context, entry AuditEntry) error {
	r.ctxErr = ctx.Err()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, entry)
	return nil
}

func (r *auditRepositoryStub) ListAuditEntries(context.Context, AuditQuery) ([]AuditEntry, error) {
	return r.appended, nil
}

func TestAuditLog_Record(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	repo := &auditRepositoryStub{}
	log := NewAuditLog(repo, sequenceIDs("audit"), fixedClock(now), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log.Record(ctx, AuditEntry{ActorID: "anna", Action: AuditCreate, EntityType: "booking", EntityID: "b1"})

	if len(repo.appended) != 1 {
		t.Fatalf("expected one entry, got %d", len(repo.appended))
	}
	entry := repo.appended[0]
	if entry.ID != "audit-001" || !entry.CreatedAt.Equal(now) {
		t.Fatalf("expected id and timestamp to be filled, got %+v", entry)
	}
	if repo.ctxErr != nil {
		t.Fatalf("audit writes must survive caller cancellation, got %v", repo.ctxErr)
	}

	entries, err := log.ListAuditEntries(context.Background(), AuditQuery{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("unexpected list result %v %v", entries, err)
	}
}

func TestAuditLog_SwallowsFailures(t *testing.T) {
	t.Parallel()

	repo := &auditRepositoryStub{appendErr: errors.New("disk full")}
	log := NewAuditLog(repo, nil, nil, nil)
	log.Record(context.Background(), AuditEntry{Action: AuditDelete})

	var nilLog *AuditLog
	nilLog.Record(context.Background(), AuditEntry{})
	if entries, err := nilLog.ListAuditEntries(context.Background(), AuditQuery{}); entries != nil || err != nil {
		t.Fatalf("nil log must be inert")
	}
}
