package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/booking-manager/internal/application"
)

type syncService interface {
	Pull(ctx context.Context, actor application.Actor) (application.SyncSnapshot, error)
	Push(ctx context.Context, actor application.Actor, batch []application.BookingSnapshot) (application.PushResult, error)
}

// maxPushBatch bounds a single push request.
const maxPushBatch = 500

type SyncHandler struct {
	service   syncService
	responder responder
}

func NewSyncHandler(service syncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{service: service, responder: newResponder(logger)}
}

// Pull returns the shared booking set. A matching If-None-Match yields 304.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	snapshot, err := h.service.Pull(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	etag := `"` + snapshot.Version + `"`
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), snapshot.Version) {
		h.responder.writeJSON(r.Context(), w, http.StatusNotModified, nil)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, pullResponse{
		Bookings:    toBookingDTOs(snapshot.Bookings),
		Version:     snapshot.Version,
		GeneratedAt: snapshot.GeneratedAt,
	})
}

// Push applies client snapshots with last write wins.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req pushRequest
	if !h.responder.decodeJSON(w, r, maxPushBodyBytes, &req) {
		return
	}
	if len(req.Bookings) > maxPushBatch {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"bookings": "Troppe prenotazioni in un'unica sincronizzazione (massimo 500)"},
		})
		return
	}

	batch := make([]application.BookingSnapshot, 0, len(req.Bookings))
	for _, item := range req.Bookings {
		batch = append(batch, application.BookingSnapshot{
			ID:         strings.TrimSpace(item.ID),
			Input:      item.toInput(),
			ModifiedAt: item.ModifiedAt,
		})
	}

	actor, _ := ActorFromContext(r.Context())
	result, err := h.service.Push(r.Context(), actor, batch)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	failures := make([]pushFailureDTO, 0, len(result.Failures))
	for _, failure := range result.Failures {
		failures = append(failures, pushFailureDTO(failure))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pushResponse{
		Created:  result.Created,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
		Errors:   result.Errors,
		Failures: failures,
	})
}

func etagMatches(header, version string) bool {
	if header == "" || version == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == version {
			return true
		}
	}
	return false
}

type pullResponse struct {
	Bookings    []bookingDTO `json:"bookings"`
	Version     string       `json:"version"`
	GeneratedAt time.Time    `json:"generated_at"`
}

type snapshotRequest struct {
	ID string `json:"id"`
	bookingRequest
	ModifiedAt time.Time `json:"modified_at"`
}

type pushRequest struct {
	Bookings []snapshotRequest `json:"bookings"`
}

type pushFailureDTO struct {
	BookingID string `json:"booking_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

type pushResponse struct {
	Created  int              `json:"created"`
	Updated  int              `json:"updated"`
	Skipped  int              `json:"skipped"`
	Errors   int              `json:"errors"`
	Failures []pushFailureDTO `json:"failures"`
}
