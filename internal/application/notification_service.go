package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// NotificationRepository persists inbox entries.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationService exposes the per-actor inbox. It also acts as the sink
// that persists dispatched notifications.
type NotificationService struct {
	notifications NotificationRepository
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService wires the inbox service.
func NewNotificationService(notifications NotificationRepository, now func() time.Time, logger *slog.Logger) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{notifications: notifications, now: now, logger: defaultLogger(logger)}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// Deliver stores one inbox row per recipient.
func (s *NotificationService) Deliver(ctx context.Context, notifications []Notification) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil || len(notifications) == 0 {
		return nil
	}
	if err := s.notifications.CreateNotifications(ctx, notifications); err != nil {
		s.loggerWith(ctx, "Deliver", "count", len(notifications)).ErrorContext(ctx, "failed to persist notifications", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	return nil
}

// List returns the actor's inbox, newest first. Shared terminals have no inbox.
func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool, limit int) ([]Notification, error) {
	if s == nil {
		return nil, fmt.Errorf("NotificationService is nil")
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.IsShared() || s.notifications == nil {
		return []Notification{}, nil
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.notifications.ListNotifications(ctx, actor.ID, unreadOnly, limit)
}

// UnreadCount returns the number of unread inbox entries.
func (s *NotificationService) UnreadCount(ctx context.Context, actor Actor) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	if actor.IsShared() || s.notifications == nil {
		return 0, nil
	}
	return s.notifications.CountUnread(ctx, actor.ID)
}

// MarkRead flags one entry as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id string) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.IsShared() || s.notifications == nil || strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return mapNotFound(s.notifications.MarkRead(ctx, actor.ID, id, s.now()))
}

// MarkAllRead flags every unread entry as read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	if actor.IsShared() || s.notifications == nil {
		return 0, nil
	}
	return s.notifications.MarkAllRead(ctx, actor.ID, s.now())
}

// Delete removes one entry from the actor's inbox.
func (s *NotificationService) Delete(ctx context.Context, actor Actor, id string) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.IsShared() || s.notifications == nil || strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return mapNotFound(s.notifications.DeleteNotification(ctx, actor.ID, id))
}

// PurgeRead removes read entries older than retention.
func (s *NotificationService) PurgeRead(ctx context.Context, retention time.Duration) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return 0, nil
	}
	removed, err := s.notifications.PurgeReadBefore(ctx, s.now().Add(-retention))
	if err != nil {
		s.loggerWith(ctx, "PurgeRead").ErrorContext(ctx, "failed to purge notifications", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	return removed, nil
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.ID) == "" || !actor.Active {
		return ErrForbidden
	}
	return nil
}

func mapNotFound(err error) error {
	if err != nil && errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return err
}
