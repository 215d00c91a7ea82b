package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/permission"
)

type adminService interface {
	RegisterStaff(ctx context.Context, params application.RegisterStaffParams) (application.User, error)
	ListUsers(ctx context.Context, actor application.Actor) ([]application.User, error)
	SetTier(ctx context.Context, params application.SetTierParams) (application.User, error)
	SetActive(ctx context.Context, params application.SetActiveParams) (application.User, error)
	ListAudit(ctx context.Context, actor application.Actor, query application.AuditQuery) ([]application.AuditEntry, error)
	UserDetails(ctx context.Context, actor application.Actor, id string) (application.AccountOverview, error)
}

type AdminHandler struct {
	service   adminService
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(service adminService, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	users, err := h.service.ListUsers(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"users": out})
}

func (h *AdminHandler) RegisterStaff(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerStaffRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	user, err := h.service.RegisterStaff(r.Context(), application.RegisterStaffParams{
		Actor:       actor,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Tier:        permission.Tier(strings.ToUpper(strings.TrimSpace(req.Tier))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "AdminHandler", "RegisterStaff", "user_id", user.ID).
		InfoContext(r.Context(), "staff account registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toUserDTO(user))
}

// SetTier serves PUT /admin/users/:id/tier.
func (h *AdminHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req struct {
		Tier string `json:"tier"`
	}
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	user, err := h.service.SetTier(r.Context(), application.SetTierParams{
		Actor:  actor,
		UserID: pathParam(r.Context(), "id"),
		Tier:   permission.Tier(strings.ToUpper(strings.TrimSpace(req.Tier))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

// SetActive serves PUT /admin/users/:id/active.
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	if req.Active == nil {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"active": "Campo obbligatorio"},
		})
		return
	}

	actor, _ := ActorFromContext(r.Context())
	user, err := h.service.SetActive(r.Context(), application.SetActiveParams{
		Actor:  actor,
		UserID: pathParam(r.Context(), "id"),
		Active: *req.Active,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

// ListAudit serves GET /admin/audit filtered as parseAuditQuery describes.
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query, err := parseAuditQuery(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	entries, err := h.service.ListAudit(r.Context(), actor, query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"entries": toAuditEntryDTOs(entries)})
}

// GetUser serves GET /admin/users/:id with a summary of the account's bookings.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	overview, err := h.service.UserDetails(r.Context(), actor, pathParam(r.Context(), "id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAccountOverviewDTO(overview))
}

// parseAuditQuery reads the actor_id, action, entity_type, since (RFC 3339)
// and limit filters.
func parseAuditQuery(values url.Values) (application.AuditQuery, error) {
	query := application.AuditQuery{
		ActorID:    strings.TrimSpace(values.Get("actor_id")),
		Action:     application.AuditAction(strings.ToUpper(strings.TrimSpace(values.Get("action")))),
		EntityType: strings.TrimSpace(values.Get("entity_type")),
	}

	fieldErrors := map[string]string{}
	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fieldErrors["since"] = "Data non valida"
		} else {
			query.Since = &since
		}
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fieldErrors["limit"] = "Limite non valido"
		}
		query.Limit = n
	}
	if len(fieldErrors) > 0 {
		return application.AuditQuery{}, &application.ValidationError{FieldErrors: fieldErrors}
	}
	return query, nil
}

type registerStaffRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Tier        string `json:"tier"`
}

type userDTO struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Tier        string     `json:"tier"`
	Active      bool       `json:"active"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		Tier:        string(user.Tier),
		Active:      user.Active,
		LastSeenAt:  user.LastSeenAt,
		CreatedAt:   user.CreatedAt,
	}
}

type auditEntryDTO struct {
	ID         string            `json:"id"`
	ActorID    string            `json:"actor_id"`
	ActorKind  string            `json:"actor_kind"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Details    map[string]string `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func toAuditEntryDTOs(entries []application.AuditEntry) []auditEntryDTO {
	out := make([]auditEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditEntryDTO{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			ActorKind:  string(entry.ActorKind),
			Action:     string(entry.Action),
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Details:    entry.Details,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

type accountOverviewDTO struct {
	User                 userDTO         `json:"user"`
	NotificationsEnabled bool            `json:"notifications_enabled"`
	Bookings             bookingStatsDTO `json:"bookings"`
	RecentBookings       []bookingDTO    `json:"recent_bookings"`
}

func toAccountOverviewDTO(overview application.AccountOverview) accountOverviewDTO {
	return accountOverviewDTO{
		User:                 toUserDTO(overview.User),
		NotificationsEnabled: overview.User.NotificationsEnabled,
		Bookings:             toBookingStatsDTO(overview.Bookings),
		RecentBookings:       toBookingDTOs(overview.RecentBookings),
	}
}
