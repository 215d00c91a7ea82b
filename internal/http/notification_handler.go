package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/booking-manager/internal/application"
)

type notificationService interface {
	List(ctx context.Context, actor application.Actor, unreadOnly bool, limit int) ([]application.Notification, error)
	UnreadCount(ctx context.Context, actor application.Actor) (int, error)
	MarkRead(ctx context.Context, actor application.Actor, id string) error
	MarkAllRead(ctx context.Context, actor application.Actor) (int, error)
	Delete(ctx context.Context, actor application.Actor, id string) error
}

type NotificationHandler struct {
	service   notificationService
	responder responder
}

func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, responder: newResponder(logger)}
}

// registeredActor rejects shared terminals, which have no inbox.
func (h *NotificationHandler) registeredActor(w http.ResponseWriter, r *http.Request) (application.Actor, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.Actor{}, false
	}
	actor, _ := ActorFromContext(r.Context())
	if actor.IsShared() {
		h.responder.writeError(r.Context(), w, http.StatusForbidden, errSharedNoInbox)
		return application.Actor{}, false
	}
	return actor, true
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.registeredActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	unreadOnly, _ := strconv.ParseBool(query.Get("unread"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	notifications, err := h.service.List(r.Context(), actor, unreadOnly, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]notificationDTO, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, toNotificationDTO(n))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"notifications": out})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.registeredActor(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]int{"unread": count})
}

// MarkAllRead serves POST /notifications/:id. Only the "read-all" id is
// accepted here, see the router.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.registeredActor(w, r)
	if !ok {
		return
	}
	if pathParam(r.Context(), "id") != "read-all" {
		http.NotFound(w, r)
		return
	}

	updated, err := h.service.MarkAllRead(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.registeredActor(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), actor, pathParam(r.Context(), "id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.registeredActor(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, pathParam(r.Context(), "id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type notificationDTO struct {
	ID        string     `json:"id"`
	Category  string     `json:"category"`
	Priority  string     `json:"priority"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	BookingID string     `json:"booking_id,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toNotificationDTO(n application.Notification) notificationDTO {
	return notificationDTO{
		ID:        n.ID,
		Category:  string(n.Category),
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		BookingID: n.BookingID,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
