package application

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/booking-manager/internal/permission"
)

type notificationRepositoryStub struct {
	mu    sync.Mutex
	items map[string]Notification
}

func newNotificationRepositoryStub() *notificationRepositoryStub {
	return &notificationRepositoryStub{items: make(map[string]Notification)}
}

func (r *notificationRepositoryStub) CreateNotifications(_ context.Context, notifications []Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range notifications {
		r.items[n.ID] = n
	}
	return nil
}

func (r *notificationRepositoryStub) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepositoryStub) CountUnread(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepositoryStub) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	n.ReadAt = &at
	r.items[id] = n
	return nil
}

func (r *notificationRepositoryStub) MarkAllRead(_ context.Context, userID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := 0
	for id, n := range r.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &at
			r.items[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r *notificationRepositoryStub) DeleteNotification(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *notificationRepositoryStub) PurgeReadBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, n := range r.items {
		if n.Read && n.ReadAt != nil && n.ReadAt.Before(cutoff) {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}

func TestNotificationService_Inbox(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	anna := actorFor(staffUser("anna", permission.TierBase))
	bruno := actorFor(staffUser("bruno", permission.TierBase))
	repo := newNotificationRepositoryStub()
	svc := NewNotificationService(repo, fixedClock(now), nil)
	ctx := context.Background()

	require.NoError(t, svc.Deliver(ctx, []Notification{
		{ID: "n1", UserID: "anna", Title: "prima", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "n2", UserID: "anna", Title: "seconda", CreatedAt: now.Add(-time.Minute)},
		{ID: "n3", UserID: "bruno", Title: "altrui", CreatedAt: now},
	}))

	inbox, err := svc.List(ctx, anna, false, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "n2", inbox[0].ID)

	unread, err := svc.UnreadCount(ctx, anna)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, svc.MarkRead(ctx, anna, "n1"))
	assert.ErrorIs(t, svc.MarkRead(ctx, anna, "n3"), ErrNotFound, "other users' entries are invisible")
	assert.ErrorIs(t, svc.MarkRead(ctx, anna, " "), ErrNotFound)

	onlyUnread, err := svc.List(ctx, anna, true, 10)
	require.NoError(t, err)
	require.Len(t, onlyUnread, 1)
	assert.Equal(t, "n2", onlyUnread[0].ID)

	changed, err := svc.MarkAllRead(ctx, anna)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	assert.ErrorIs(t, svc.Delete(ctx, bruno, "n1"), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, bruno, "n3"))

	later := NewNotificationService(repo, fixedClock(now.Add(31*24*time.Hour)), nil)
	removed, err := later.PurgeRead(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestNotificationService_SharedAndAnonymousActors(t *testing.T) {
	t.Parallel()

	svc := NewNotificationService(newNotificationRepositoryStub(), nil, nil)
	ctx := context.Background()
	shared := NewSharedActor(SharedClaims{ActorID: "shared-1", Role: permission.RoleStaff, Tier: permission.TierBase, Expiry: time.Now().Add(time.Hour)})

	inbox, err := svc.List(ctx, shared, false, 0)
	require.NoError(t, err)
	assert.Empty(t, inbox)
	count, err := svc.UnreadCount(ctx, shared)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.ErrorIs(t, svc.MarkRead(ctx, shared, "n1"), ErrNotFound)

	_, err = svc.List(ctx, Actor{}, false, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}
