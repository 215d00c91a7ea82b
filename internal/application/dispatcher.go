package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NotificationSink delivers expanded per-recipient notifications.
type NotificationSink interface {
	Deliver(ctx context.Context, notifications []Notification) error
}

// NotificationSinkFunc adapts a function to NotificationSink.
type NotificationSinkFunc func(ctx context.Context, notifications []Notification) error

// Deliver calls f.
func (f NotificationSinkFunc) Deliver(ctx context.Context, notifications []Notification) error {
	return f(ctx, notifications)
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchTimeout bounds each asynchronous delivery.
func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDispatchLogger overrides the base logger.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = defaultLogger(logger)
	}
}

// WithSink appends a delivery sink.
func WithSink(sink NotificationSink) DispatcherOption {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sinks = append(d.sinks, sink)
		}
	}
}

// Dispatcher fans notifications out to sinks in the background. Delivery
// errors are logged and never surface to the caller of Notify.
type Dispatcher struct {
	directory   UserDirectory
	sinks       []NotificationSink
	idGenerator func() string
	now         func() time.Time
	timeout     time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewDispatcher constructs a dispatcher. Recipients are filtered against
// directory so only active registered actors are addressed.
func NewDispatcher(directory UserDirectory, idGenerator func() string, now func() time.Time, opts ...DispatcherOption) *Dispatcher {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		directory:   directory,
		idGenerator: idGenerator,
		now:         now,
		timeout:     10 * time.Second,
		logger:      defaultLogger(nil),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify schedules delivery and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, dispatch Dispatch) {
	if d == nil || len(dispatch.Recipients) == 0 {
		return
	}
	if dispatch.CreatedAt.IsZero() {
		dispatch.CreatedAt = d.now()
	}
	dispatch.Recipients = append([]string(nil), dispatch.Recipients...)

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		deliverCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()
		if err := d.Deliver(deliverCtx, dispatch); err != nil {
			serviceLogger(deliverCtx, d.logger, "Dispatcher", "Notify",
				"category", dispatch.Category,
				"booking_id", dispatch.BookingID,
			).WarnContext(deliverCtx, "notification delivery failed", "error", err)
		}
	}()
}

// Deliver resolves recipients and hands the notifications to every sink
// synchronously. Sink failures are joined; every sink is attempted.
func (d *Dispatcher) Deliver(ctx context.Context, dispatch Dispatch) error {
	if d == nil {
		return fmt.Errorf("Dispatcher is nil")
	}
	recipients, err := d.activeRecipients(ctx, dispatch.Recipients)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	if dispatch.Priority == "" {
		dispatch.Priority = PriorityMedium
	}

	notifications := make([]Notification, 0, len(recipients))
	for _, recipient := range recipients {
		notifications = append(notifications, Notification{
			ID:        d.idGenerator(),
			UserID:    recipient,
			Category:  dispatch.Category,
			Priority:  dispatch.Priority,
			Title:     dispatch.Title,
			Message:   dispatch.Message,
			BookingID: dispatch.BookingID,
			CreatedAt: dispatch.CreatedAt,
		})
	}

	var errs []error
	for _, sink := range d.sinks {
		if sinkErr := sink.Deliver(ctx, notifications); sinkErr != nil {
			errs = append(errs, sinkErr)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every scheduled delivery finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) activeRecipients(ctx context.Context, ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if d.directory == nil {
		return unique, nil
	}

	users, err := d.directory.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	eligible := make(map[string]bool, len(users))
	for _, user := range users {
		eligible[user.ID] = user.Active && user.NotificationsEnabled
	}

	out := unique[:0]
	for _, id := range unique {
		if eligible[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
