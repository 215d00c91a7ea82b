// Package notify carries dispatched notifications beyond the inbox: a Kafka
// producer and consumer pair for multi-instance deployments and a websocket
// hub that pushes them to connected terminals.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/booking-manager/internal/application"
)

// Event is the wire form of a notification on Kafka and on websockets.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Priority  string    `json:"priority"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	BookingID string    `json:"booking_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventFrom converts an application notification.
func EventFrom(n application.Notification) Event {
	return Event{
		ID:        n.ID,
		UserID:    n.UserID,
		Category:  string(n.Category),
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		BookingID: n.BookingID,
		CreatedAt: n.CreatedAt,
	}
}

// Notification converts the event back.
func (e Event) Notification() application.Notification {
	return application.Notification{
		ID:        e.ID,
		UserID:    e.UserID,
		Category:  application.NotificationCategory(e.Category),
		Priority:  application.NotificationPriority(e.Priority),
		Title:     e.Title,
		Message:   e.Message,
		BookingID: e.BookingID,
		CreatedAt: e.CreatedAt,
	}
}

func decodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode notification event: %w", err)
	}
	if event.UserID == "" {
		return Event{}, fmt.Errorf("notification event %q has no recipient", event.ID)
	}
	return event, nil
}
