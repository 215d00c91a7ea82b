package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/permission"
	"github.com/example/booking-manager/internal/report"
)

const sessionCookieName = "session_token"

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RevokeSession(ctx context.Context, actor application.Actor, token string) error
	IssueSharedToken(ctx context.Context, params application.IssueSharedTokenParams) (application.SharedTokenResult, error)
}

type AuthHandler struct {
	service        authService
	sharedLoginURL string
	responder      responder
	logger         *slog.Logger
}

// NewAuthHandler builds the session endpoints. sharedLoginURL is printed in
// the QR code of shared access cards when set.
func NewAuthHandler(service authService, sharedLoginURL string, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, sharedLoginURL: sharedLoginURL, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	logger := h.log(r.Context(), "CreateSession", "email", email)

	result, err := h.service.Authenticate(r.Context(), application.AuthenticateParams{
		Email:       email,
		Password:    req.Password,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "authentication rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	setSessionCookie(w, result.Session.Token, result.Session.ExpiresAt)
	w.Header().Set("X-Session-Token", result.Session.Token)

	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user authenticated")

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt.UTC().Format(time.RFC3339Nano),
		Actor:     toActorDTO(result.Actor),
	})
}

// CurrentSession describes the actor behind the presented credential.
func (h *AuthHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toActorDTO(actor))
}

func (h *AuthHandler) DeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	if actor.IsShared() {
		// Shared tokens are stateless and expire on their own.
		h.responder.handleServiceError(r.Context(), w, application.ErrForbidden)
		return
	}

	logger := h.log(r.Context(), "DeleteCurrentSession")
	if err := h.service.RevokeSession(r.Context(), actor, tokenFromContext(r.Context())); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	clearSessionCookie(w)
	logger.InfoContext(r.Context(), "session revoked for current actor")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// CreateSharedSession issues a shared direct access token.
func (h *AuthHandler) CreateSharedSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req sharedSessionRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	result, err := h.issueShared(r.Context(), req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		Token:     result.Token,
		ExpiresAt: result.Claims.Expiry.UTC().Format(time.RFC3339Nano),
		Actor:     toActorDTO(application.NewSharedActor(result.Claims)),
	})
}

// SharedAccessCard issues a shared token and returns it as a printable PDF.
func (h *AuthHandler) SharedAccessCard(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	result, err := h.issueShared(r.Context(), sharedSessionRequest{
		DisplayName: query.Get("display_name"),
		Role:        query.Get("role"),
		Tier:        query.Get("tier"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	err = report.WriteAccessCard(&buf, report.AccessCard{
		Token:       result.Token,
		DisplayName: result.Claims.DisplayName,
		IssuedBy:    issuerName(r.Context()),
		ExpiresAt:   result.Claims.Expiry,
		LoginURL:    h.sharedLoginURL,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="accesso-condiviso.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log(r.Context(), "SharedAccessCard").WarnContext(r.Context(), "failed to write access card", "error", err)
	}
}

func (h *AuthHandler) issueShared(ctx context.Context, req sharedSessionRequest) (application.SharedTokenResult, error) {
	actor, _ := ActorFromContext(ctx)
	role := permission.RoleStaff
	if req.Role != "" {
		role = permission.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	}
	tier := permission.TierBase
	if req.Tier != "" {
		tier = permission.Tier(strings.ToUpper(strings.TrimSpace(req.Tier)))
	}
	return h.service.IssueSharedToken(ctx, application.IssueSharedTokenParams{
		Actor:       actor,
		DisplayName: req.DisplayName,
		Role:        role,
		Tier:        tier,
	})
}

func issuerName(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	return actor.Email
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sharedSessionRequest struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Tier        string `json:"tier"`
}

type sessionResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	Actor     actorDTO `json:"actor"`
}

type actorDTO struct {
	ID           string                   `json:"id"`
	Kind         string                   `json:"kind"`
	DisplayName  string                   `json:"display_name"`
	Email        string                   `json:"email,omitempty"`
	Role         string                   `json:"role"`
	Tier         string                   `json:"tier"`
	Capabilities permission.CapabilitySet `json:"capabilities"`
	ExpiresAt    *time.Time               `json:"expires_at,omitempty"`
}

func toActorDTO(actor application.Actor) actorDTO {
	return actorDTO{
		ID:           actor.ID,
		Kind:         string(actor.Kind),
		DisplayName:  actor.DisplayName,
		Email:        actor.Email,
		Role:         string(actor.Role),
		Tier:         string(actor.Tier),
		Capabilities: actor.Capabilities(),
		ExpiresAt:    actor.ExpiresAt,
	}
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	http.SetCookie(w, cookie)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
}
