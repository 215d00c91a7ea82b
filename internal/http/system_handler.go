package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// NotificationStream upgrades a request into a live notification feed for userID.
type NotificationStream interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type SystemHandler struct {
	stream    NotificationStream
	checks    map[string]HealthCheck
	responder responder
	logger    *slog.Logger
}

func NewSystemHandler(stream NotificationStream, checks map[string]HealthCheck, logger *slog.Logger) *SystemHandler {
	base := defaultLogger(logger)
	return &SystemHandler{stream: stream, checks: checks, responder: newResponder(base), logger: base}
}

// Stream serves GET /ws for registered actors.
func (h *SystemHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.stream == nil {
		http.NotFound(w, r)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	if actor.IsShared() {
		h.responder.writeError(r.Context(), w, http.StatusForbidden, errSharedNoInbox)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "SystemHandler", "Stream", "user_id", actor.ID)
	if err := h.stream.Serve(w, r, actor.ID); err != nil {
		// The upgrader has already answered the client.
		logger.WarnContext(r.Context(), "notification stream rejected", "error", err)
		return
	}
	logger.DebugContext(r.Context(), "notification stream closed")
}

// Health runs every registered check with a short deadline.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			handlerLogger(r.Context(), h.logger, "SystemHandler", "Health", "check", name).
				WarnContext(r.Context(), "health check failed", "error", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	h.responder.writeJSON(r.Context(), w, status, map[string]any{"status": overall, "checks": results})
}
