package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/booking-manager/internal/permission"
)

// CredentialStore exposes the user lookups required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthenticateParams carries a login attempt.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult is returned after a successful login.
type AuthenticateResult struct {
	Actor   Actor
	User    User
	Session Session
}

// ChangePasswordParams carries a password change for the acting account.
type ChangePasswordParams struct {
	Actor           Actor
	CurrentPassword string
	NewPassword     string
}

// IssueSharedTokenParams describes the shared terminal credential to mint.
type IssueSharedTokenParams struct {
	Actor       Actor
	DisplayName string
	Role        permission.Role
	Tier        permission.Tier
}

// SharedTokenResult carries a freshly signed shared credential.
type SharedTokenResult struct {
	Token  string
	Claims SharedClaims
}

// AuthServiceOption customises an AuthService.
type AuthServiceOption func(*AuthService)

// WithSharedTokens enables shared direct access credentials.
func WithSharedTokens(signer *SharedTokenSigner) AuthServiceOption {
	return func(s *AuthService) {
		s.shared = signer
	}
}

// WithPasswordVerifier overrides password verification.
func WithPasswordVerifier(verify PasswordVerifier) AuthServiceOption {
	return func(s *AuthService) {
		if verify != nil {
			s.verifyPassword = verify
		}
	}
}

// WithPasswordHasher overrides the hasher used for password changes.
func WithPasswordHasher(hash PasswordHasher) AuthServiceOption {
	return func(s *AuthService) {
		if hash != nil {
			s.hashPassword = hash
		}
	}
}

// WithAuthAudit wires the audit recorder.
func WithAuthAudit(audit AuditRecorder) AuthServiceOption {
	return func(s *AuthService) {
		s.audit = audit
	}
}

// WithAuthLogger overrides the base logger.
func WithAuthLogger(logger *slog.Logger) AuthServiceOption {
	return func(s *AuthService) {
		s.logger = defaultLogger(logger)
	}
}

// AuthService resolves credentials into actors and manages login sessions.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	shared         *SharedTokenSigner
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	audit          AuditRecorder
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, opts ...AuthServiceOption) *AuthService {
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	service := &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		verifyPassword: VerifyPassword,
		hashPassword:   HashPassword,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(nil),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates email and password and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.sessions == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID, "session_id", result.Session.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredential
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredential
		}
		return
	}

	if verifyErr := s.verifyPassword(creds.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredential
		return
	}
	if !creds.User.Active {
		err = ErrAccountDisabled
		return
	}

	now := s.now()
	id := s.tokenGenerator()
	token := s.tokenGenerator()
	if token == "" {
		token = id
	}

	var session Session
	session, err = s.sessions.CreateSession(ctx, Session{
		ID:          id,
		UserID:      creds.User.ID,
		Token:       token,
		Fingerprint: strings.TrimSpace(params.Fingerprint),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	})
	if err != nil {
		return
	}

	user := creds.User
	seen := now
	user.LastSeenAt = &seen
	user.UpdatedAt = now
	if persisted, updateErr := s.credentials.UpdateUser(ctx, user); updateErr != nil {
		logger.WarnContext(ctx, "failed to record last seen", "error", updateErr)
	} else {
		user = persisted
	}

	result = AuthenticateResult{Actor: NewRegisteredActor(user), User: user, Session: session}
	s.record(ctx, result.Actor, AuditLogin, map[string]string{"session_id": session.ID})
	return
}

// Resolve maps a bearer credential to an actor. Signed shared tokens are
// verified without storage access; anything else is treated as a session token.
func (s *AuthService) Resolve(ctx context.Context, token string) (actor Actor, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "Resolve", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "credential rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("actor_id", actor.ID, "actor_kind", actor.Kind).DebugContext(ctx, "credential resolved")
	}()

	if trimmed == "" {
		err = ErrInvalidCredential
		return
	}

	if looksLikeSharedToken(trimmed) {
		var claims SharedClaims
		claims, err = s.shared.Verify(trimmed)
		if err != nil {
			return
		}
		actor = NewSharedActor(claims)
		return
	}

	if s.sessions == nil || s.credentials == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, trimmed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredential
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredential
		}
		return
	}
	if !user.Active {
		err = ErrAccountDisabled
		return
	}

	actor = NewRegisteredActor(user)
	return
}

// RevokeSession invalidates the caller's session token. Shared tokens cannot
// be revoked and simply expire.
func (s *AuthService) RevokeSession(ctx context.Context, actor Actor, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" || looksLikeSharedToken(trimmed) {
		return ErrInvalidCredential
	}

	logger := s.loggerWith(ctx, "RevokeSession", "actor_id", actor.ID)

	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredential
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	s.record(ctx, actor, AuditLogout, nil)
	return nil
}

// IssueSharedToken mints a shared direct access credential for a front of
// house terminal. Only actors that manage permissions may do this.
func (s *AuthService) IssueSharedToken(ctx context.Context, params IssueSharedTokenParams) (result SharedTokenResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	logger := s.loggerWith(ctx, "IssueSharedToken", "actor_id", params.Actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "shared token issuance failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("shared_actor_id", result.Claims.ActorID, "tier", result.Claims.Tier, "expires_at", result.Claims.Expiry).InfoContext(ctx, "shared token issued")
	}()

	if !params.Actor.Capabilities().CanManagePermissions || params.Actor.IsShared() {
		err = ErrForbidden
		return
	}
	if s.shared == nil {
		err = fmt.Errorf("shared tokens not configured")
		return
	}

	role := params.Role
	if role == "" {
		role = permission.RoleStaff
	}
	if !role.Valid() {
		err = newValidationError("role", "Ruolo non valido")
		return
	}
	tier := params.Tier
	if tier == "" {
		tier = permission.TierBase
	}
	if !tier.Valid() {
		err = newValidationError("tier", "Livello permessi non valido")
		return
	}
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		name = "Postazione condivisa"
	}

	var token string
	var claims SharedClaims
	token, claims, err = s.shared.Issue(SharedClaims{
		ActorID:     "shared-" + s.tokenGenerator(),
		DisplayName: name,
		Role:        role,
		Tier:        tier,
		IssuedBy:    params.Actor.ID,
	})
	if err != nil {
		return
	}

	result = SharedTokenResult{Token: token, Claims: claims}
	return
}

// ChangePassword replaces the acting account's password after checking the
// current one. A wrong current password is a validation error on
// current_password so clients do not mistake it for an expired session.
func (s *AuthService) ChangePassword(ctx context.Context, params ChangePasswordParams) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("auth stores not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "actor_id", params.Actor.ID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "password change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password changed")
	}()

	if params.Actor.IsShared() || strings.TrimSpace(params.Actor.ID) == "" {
		err = ErrForbidden
		return
	}

	vErr := &ValidationError{}
	if params.CurrentPassword == "" {
		vErr.add("current_password", "Password corrente richiesta")
	}
	if utf8.RuneCountInString(params.NewPassword) < MinPasswordLength {
		vErr.add("new_password", "Password deve contenere almeno 8 caratteri")
	} else if params.NewPassword == params.CurrentPassword {
		vErr.add("new_password", "La nuova password deve essere diversa da quella attuale")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, params.Actor.ID)
	if err != nil {
		return
	}
	if !user.Active {
		err = ErrAccountDisabled
		return
	}
	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, user.Email)
	if err != nil {
		return
	}
	if verifyErr := s.verifyPassword(creds.PasswordHash, params.CurrentPassword); verifyErr != nil {
		err = newValidationError("current_password", "Password corrente non corretta")
		return
	}

	var hash string
	hash, err = s.hashPassword(params.NewPassword)
	if err != nil {
		return
	}
	if err = s.credentials.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			ActorID:    params.Actor.ID,
			ActorKind:  params.Actor.Kind,
			Action:     AuditUpdate,
			EntityType: "user",
			EntityID:   user.ID,
			Details:    map[string]string{"password": "changed"},
			CreatedAt:  s.now(),
		})
	}
	return
}

// PruneSessions deletes sessions that expired before now.
func (s *AuthService) PruneSessions(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return 0, nil
	}
	removed, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.loggerWith(ctx, "PruneSessions").ErrorContext(ctx, "failed to prune expired sessions", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	return removed, nil
}

func (s *AuthService) record(ctx context.Context, actor Actor, action AuditAction, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:    actor.ID,
		ActorKind:  actor.Kind,
		Action:     action,
		EntityType: "session",
		EntityID:   actor.ID,
		Details:    details,
		CreatedAt:  s.now(),
	})
}
