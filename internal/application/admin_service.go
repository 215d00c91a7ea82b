package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/booking-manager/internal/permission"
)

// UserRepository captures the persistence operations needed to administer accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, credentials UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// AuditReader lists recorded audit entries.
type AuditReader interface {
	ListAuditEntries(ctx context.Context, query AuditQuery) ([]AuditEntry, error)
}

// RegisterStaffParams describes a new staff account.
type RegisterStaffParams struct {
	Actor       Actor
	Email       string
	DisplayName string
	Password    string
	Tier        permission.Tier
}

// SetTierParams changes the permission tier of an account.
type SetTierParams struct {
	Actor  Actor
	UserID string
	Tier   permission.Tier
}

// SetActiveParams activates or deactivates an account.
type SetActiveParams struct {
	Actor  Actor
	UserID string
	Active bool
}

// AdminServiceOption customises an AdminService.
type AdminServiceOption func(*AdminService)

// WithAdminBookings lets account details summarise the bookings each
// account created.
func WithAdminBookings(bookings BookingRepository) AdminServiceOption {
	return func(s *AdminService) {
		s.bookings = bookings
	}
}

// AdminService manages registered accounts and exposes the audit trail.
type AdminService struct {
	users       UserRepository
	bookings    BookingRepository
	auditLog    AuditReader
	audit       AuditRecorder
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAdminService wires dependencies for account administration.
func NewAdminService(users UserRepository, auditLog AuditReader, audit AuditRecorder, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...AdminServiceOption) *AdminService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	service := &AdminService{
		users:       users,
		auditLog:    auditLog,
		audit:       audit,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *AdminService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AdminService", operation, attrs...)
}

func (s *AdminService) authorize(actor Actor) error {
	if actor.IsShared() || !actor.Capabilities().CanManagePermissions {
		return ErrForbidden
	}
	return nil
}

// RegisterStaff creates an active STAFF account.
func (s *AdminService) RegisterStaff(ctx context.Context, params RegisterStaffParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AdminService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	logger := s.loggerWith(ctx, "RegisterStaff", "actor_id", params.Actor.ID, "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "staff registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "staff registered")
	}()

	if err = s.authorize(params.Actor); err != nil {
		return
	}

	displayName := strings.TrimSpace(params.DisplayName)
	tier := params.Tier
	if tier == "" {
		tier = permission.TierBase
	}

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "Email è richiesta")
	} else if _, parseErr := mail.ParseAddress(email); parseErr != nil {
		vErr.add("email", "Email non valida")
	}
	if n := utf8.RuneCountInString(displayName); n < minNameLength || n > maxNameLength {
		vErr.add("display_name", "Nome deve essere tra 2 e 100 caratteri")
	}
	if utf8.RuneCountInString(params.Password) < MinPasswordLength {
		vErr.add("password", "Password deve contenere almeno 8 caratteri")
	}
	if !tier.Assignable() {
		vErr.add("tier", "Livello permessi non assegnabile")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hash(params.Password)
	if err != nil {
		return
	}

	now := s.now()
	user, err = s.users.CreateUser(ctx, UserCredentials{
		User: User{
			ID:                   s.idGenerator(),
			Email:                email,
			DisplayName:          displayName,
			Role:                 permission.RoleStaff,
			Tier:                 tier,
			Active:               true,
			NotificationsEnabled: true,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return
	}

	s.record(ctx, params.Actor, AuditCreate, user.ID, map[string]string{"tier": string(user.Tier)})
	return
}

// ListUsers returns every registered account ordered by email.
func (s *AdminService) ListUsers(ctx context.Context, actor Actor) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("AdminService is nil")
	}
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	return out, nil
}

// UserDetails returns one account with a summary of the bookings it created.
func (s *AdminService) UserDetails(ctx context.Context, actor Actor, id string) (AccountOverview, error) {
	if s == nil {
		return AccountOverview{}, fmt.Errorf("AdminService is nil")
	}
	if err := s.authorize(actor); err != nil {
		return AccountOverview{}, err
	}
	if s.users == nil {
		return AccountOverview{}, fmt.Errorf("user repository not configured")
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return AccountOverview{}, err
	}
	return overviewFor(ctx, s.bookings, user)
}

// SetTier changes a STAFF account's tier. ADMIN accounts are immutable and
// ADMINISTRATOR cannot be granted.
func (s *AdminService) SetTier(ctx context.Context, params SetTierParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AdminService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetTier", "actor_id", params.Actor.ID, "user_id", params.UserID, "tier", params.Tier)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "tier change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "tier changed")
	}()

	if err = s.authorize(params.Actor); err != nil {
		return
	}
	if !params.Tier.Assignable() {
		err = newValidationError("tier", "Livello permessi non assegnabile")
		return
	}

	var existing User
	existing, err = s.loadUser(ctx, params.UserID)
	if err != nil {
		return
	}
	if existing.Role == permission.RoleAdmin {
		err = ErrForbidden
		return
	}

	previous := existing.Tier
	existing.Tier = params.Tier
	existing.UpdatedAt = s.now()
	user, err = s.users.UpdateUser(ctx, existing)
	if err != nil {
		return
	}

	s.record(ctx, params.Actor, AuditUpdate, user.ID, map[string]string{"tier_from": string(previous), "tier_to": string(user.Tier)})
	return
}

// SetActive toggles an account. Actors cannot deactivate themselves.
func (s *AdminService) SetActive(ctx context.Context, params SetActiveParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AdminService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetActive", "actor_id", params.Actor.ID, "user_id", params.UserID, "active", params.Active)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "activation change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "activation changed")
	}()

	if err = s.authorize(params.Actor); err != nil {
		return
	}
	if !params.Active && params.UserID == params.Actor.ID {
		err = newValidationError("active", "Non puoi disattivare il tuo account")
		return
	}

	var existing User
	existing, err = s.loadUser(ctx, params.UserID)
	if err != nil {
		return
	}

	existing.Active = params.Active
	existing.UpdatedAt = s.now()
	user, err = s.users.UpdateUser(ctx, existing)
	if err != nil {
		return
	}

	s.record(ctx, params.Actor, AuditUpdate, user.ID, map[string]string{"active": fmt.Sprint(user.Active)})
	return
}

// ListAudit returns audit entries matching query, newest first.
func (s *AdminService) ListAudit(ctx context.Context, actor Actor, query AuditQuery) ([]AuditEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("AdminService is nil")
	}
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if s.auditLog == nil {
		return nil, nil
	}
	if query.Limit <= 0 || query.Limit > MaxPageSize {
		query.Limit = MaxPageSize
	}
	return s.auditLog.ListAuditEntries(ctx, query)
}

func (s *AdminService) loadUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, ErrNotFound
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *AdminService) record(ctx context.Context, actor Actor, action AuditAction, userID string, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:    actor.ID,
		ActorKind:  actor.Kind,
		Action:     action,
		EntityType: "user",
		EntityID:   userID,
		Details:    details,
		CreatedAt:  s.now(),
	})
}
