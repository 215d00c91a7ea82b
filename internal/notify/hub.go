package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/booking-manager/internal/application"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

type subscriber struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub pushes notifications to the websocket connections of their
// recipients. A recipient may hold several connections.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

var _ application.NotificationSink = (*Hub)(nil)

// NewHub builds a hub. An origin list containing "*" accepts any origin;
// requests without an Origin header are always accepted.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || allowed[origin]
			},
		},
		logger: logger.With(slog.String("component", "notify_hub")),
	}
}

// Serve upgrades the request and streams userID's notifications until the
// client goes away. It blocks for the lifetime of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	sub := &subscriber{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(sub)
	go h.writeLoop(sub)
	h.readLoop(sub)
	return nil
}

// Deliver queues each notification on its recipient's connections. Slow
// connections whose buffer is full are dropped.
func (h *Hub) Deliver(_ context.Context, notifications []application.Notification) error {
	var slow []*subscriber

	h.mu.RLock()
	for _, n := range notifications {
		subs := h.subscribers[n.UserID]
		if len(subs) == 0 {
			continue
		}
		payload, err := json.Marshal(EventFrom(n))
		if err != nil {
			h.mu.RUnlock()
			return fmt.Errorf("encode notification %s: %w", n.ID, err)
		}
		for sub := range subs {
			select {
			case sub.send <- payload:
			default:
				slow = append(slow, sub)
			}
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn("dropping slow websocket subscriber", slog.String("user_id", sub.userID))
		h.remove(sub)
	}
	return nil
}

// Subscribers reports how many connections userID currently holds.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subscribers
	h.subscribers = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, subs := range all {
		for sub := range subs {
			close(sub.send)
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[sub.userID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.subscribers[sub.userID] = subs
	}
	subs[sub] = struct{}{}
}

// remove unregisters sub and closes its queue exactly once.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[sub.userID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, sub.userID)
	}
	close(sub.send)
}

func (h *Hub) readLoop(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
	}()

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
