package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/logging"
)

var (
	errBadRequestBody      = errors.New("Formato della richiesta non valido.")
	errMissingSessionToken = errors.New("Token di autenticazione mancante.")
	errSharedNoInbox       = errors.New("Gli accessi condivisi non hanno una casella notifiche.")
	errBodyTooLarge        = errors.New("Richiesta troppo grande.")
)

// Request body caps. A push carries up to maxPushBatch full bookings.
const (
	maxJSONBodyBytes = 64 << 10
	maxPushBodyBytes = 4 << 20
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || status == http.StatusNotModified || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// decodeJSON reads at most limit bytes of JSON into dst. On failure it has
// already written the 400 or 413 response and returns false.
func (r responder) decodeJSON(w http.ResponseWriter, req *http.Request, limit int64, dst any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, limit)
	err := json.NewDecoder(req.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		r.writeJSON(req.Context(), w, http.StatusRequestEntityTooLarge, errorResponse{
			ErrorCode: "PAYLOAD_TOO_LARGE",
			Message:   errBodyTooLarge.Error(),
		})
		return false
	}
	r.writeError(req.Context(), w, http.StatusBadRequest, errBadRequestBody)
	return false
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, body)
}

// classifyError maps service errors onto a status code and response body.
func classifyError(err error) (int, errorResponse) {
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_ERROR",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		}
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "Sessione scaduta, effettua di nuovo l'accesso.",
		}
	case errors.Is(err, application.ErrInvalidCredential):
		return http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIAL",
			Message:   "Credenziali non valide.",
		}
	case errors.Is(err, application.ErrAccountDisabled):
		return http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_ACCOUNT_DISABLED",
			Message:   "Account disattivato. Contatta un amministratore.",
		}
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   localizedStatusMessage(http.StatusForbidden),
		}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   localizedStatusMessage(http.StatusNotFound),
		}
	case errors.Is(err, application.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{
			ErrorCode: "INVALID_TRANSITION",
			Message:   "La prenotazione è già stata processata.",
		}
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict, errorResponse{
			ErrorCode: "CONFLICT",
			Message:   "La prenotazione è stata modificata nel frattempo. Riprova.",
		}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "La risorsa esiste già.",
		}
	case errors.Is(err, application.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{
			ErrorCode: "RATE_LIMITED",
			Message:   localizedStatusMessage(http.StatusTooManyRequests),
		}
	default:
		return http.StatusInternalServerError, errorResponse{
			Message: localizedStatusMessage(http.StatusInternalServerError),
		}
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Richiesta non valida."
	case http.StatusUnauthorized:
		return "Autenticazione richiesta."
	case http.StatusForbidden:
		return "Non hai i permessi per eseguire questa operazione."
	case http.StatusNotFound:
		return "Risorsa non trovata."
	case http.StatusConflict:
		return "La richiesta è in conflitto con lo stato attuale della risorsa."
	case http.StatusUnprocessableEntity:
		return "Dati non validi."
	case http.StatusTooManyRequests:
		return "Troppe richieste, riprova tra poco."
	default:
		return "Errore interno del server."
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
