package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/booking-manager/internal/application"
)

type profileService interface {
	GetProfile(ctx context.Context, actor application.Actor) (application.AccountOverview, error)
	UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (application.User, error)
	ListActivity(ctx context.Context, actor application.Actor, query application.AuditQuery) ([]application.AuditEntry, error)
}

type passwordChanger interface {
	ChangePassword(ctx context.Context, params application.ChangePasswordParams) error
}

// ProfileHandler serves the acting account's own profile.
type ProfileHandler struct {
	profiles  profileService
	passwords passwordChanger
	responder responder
	logger    *slog.Logger
}

func NewProfileHandler(profiles profileService, passwords passwordChanger, logger *slog.Logger) *ProfileHandler {
	base := defaultLogger(logger)
	return &ProfileHandler{profiles: profiles, passwords: passwords, responder: newResponder(base), logger: base}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.profiles == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	overview, err := h.profiles.GetProfile(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAccountOverviewDTO(overview))
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.profiles == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req profileRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	user, err := h.profiles.UpdateProfile(r.Context(), application.UpdateProfileParams{
		Actor:                actor,
		DisplayName:          req.DisplayName,
		NotificationsEnabled: req.NotificationsEnabled,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, profileDTO{
		User:                 toUserDTO(user),
		NotificationsEnabled: user.NotificationsEnabled,
	})
}

// ChangePassword serves PUT /profile/password.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.passwords == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req passwordChangeRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	err := h.passwords.ChangePassword(r.Context(), application.ChangePasswordParams{
		Actor:           actor,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "ProfileHandler", "ChangePassword").InfoContext(r.Context(), "password changed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Activity serves GET /profile/activity. actor_id in the query is ignored.
func (h *ProfileHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.profiles == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query, err := parseAuditQuery(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	entries, err := h.profiles.ListActivity(r.Context(), actor, query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"entries": toAuditEntryDTOs(entries)})
}

type profileRequest struct {
	DisplayName          *string `json:"display_name"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type profileDTO struct {
	User                 userDTO `json:"user"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
}
