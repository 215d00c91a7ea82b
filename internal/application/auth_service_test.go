package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/booking-manager/internal/permission"
)

var cheapArgon2Params = Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type sessionRepositoryStub struct {
	mu        sync.Mutex
	sessions  map[string]Session
	createErr error
	pruned    []time.Time
}

func newSessionRepositoryStub(seed ...Session) *sessionRepositoryStub {
	repo := &sessionRepositoryStub{sessions: make(map[string]Session)}
	for _, s := range seed {
		repo.sessions[s.Token] = s
	}
	return repo
}

func (r *sessionRepositoryStub) CreateSession(_ context.Context, session Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Session{}, r.createErr
	}
	r.sessions[session.Token] = session
	return session, nil
}

func (r *sessionRepositoryStub) GetSession(_ context.Context, token string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *sessionRepositoryStub) RevokeSession(_ context.Context, token string, at time.Time) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.RevokedAt = &at
	r.sessions[token] = s
	return s, nil
}

func (r *sessionRepositoryStub) DeleteExpiredSessions(_ context.Context, reference time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, reference)
	removed := 0
	for token, s := range r.sessions {
		if !s.ExpiresAt.After(reference) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed, nil
}

type authHarness struct {
	users    *userDirectoryStub
	sessions *sessionRepositoryStub
	audit    *auditRecorderStub
	signer   *SharedTokenSigner
	service  *AuthService
}

func newAuthHarness(t *testing.T, now time.Time, users ...User) authHarness {
	t.Helper()

	dir := newUserDirectoryStub(users...)
	for _, u := range users {
		hash, err := CreatePasswordHash("password-"+u.ID, cheapArgon2Params)
		require.NoError(t, err)
		dir.hashes[u.ID] = hash
	}
	sessions := newSessionRepositoryStub()
	audit := &auditRecorderStub{}
	signer := NewSharedTokenSigner("test-secret", time.Hour, fixedClock(now))
	service := NewAuthService(dir, sessions, sequenceIDs("tok"), fixedClock(now), 12*time.Hour,
		WithSharedTokens(signer), WithAuthAudit(audit),
		WithPasswordHasher(func(password string) (string, error) { return CreatePasswordHash(password, cheapArgon2Params) }))

	return authHarness{users: dir, sessions: sessions, audit: audit, signer: signer, service: service}
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	anna := staffUser("anna", permission.TierAuthorized)
	disabled := staffUser("carlo", permission.TierBase)
	disabled.Active = false

	t.Run("issues a session and records the login", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)

		result, err := h.service.Authenticate(context.Background(), AuthenticateParams{Email: " ANNA@example.com ", Password: "password-anna", Fingerprint: "tablet"})
		require.NoError(t, err)
		assert.Equal(t, "anna", result.User.ID)
		assert.Equal(t, "tok-001", result.Session.ID)
		assert.Equal(t, "tok-002", result.Session.Token)
		assert.Equal(t, "tablet", result.Session.Fingerprint)
		assert.True(t, result.Session.ExpiresAt.Equal(now.Add(12*time.Hour)))
		assert.True(t, result.Actor.Capabilities().CanAutoApprove)

		stored, err := h.users.GetUser(context.Background(), "anna")
		require.NoError(t, err)
		require.NotNil(t, stored.LastSeenAt)
		assert.True(t, stored.LastSeenAt.Equal(now))
		assert.Equal(t, []AuditAction{AuditLogin}, h.audit.actions())
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)

		_, err := h.service.Authenticate(context.Background(), AuthenticateParams{Email: "anna@example.com", Password: "nope"})
		assert.ErrorIs(t, err, ErrInvalidCredential)
		_, err = h.service.Authenticate(context.Background(), AuthenticateParams{Email: "ghost@example.com", Password: "password-anna"})
		assert.ErrorIs(t, err, ErrInvalidCredential)
		_, err = h.service.Authenticate(context.Background(), AuthenticateParams{})
		assert.ErrorIs(t, err, ErrInvalidCredential)
		assert.Empty(t, h.sessions.sessions)
	})

	t.Run("disabled accounts are refused after password check", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, disabled)

		_, err := h.service.Authenticate(context.Background(), AuthenticateParams{Email: "carlo@example.com", Password: "password-carlo"})
		assert.ErrorIs(t, err, ErrAccountDisabled)
		_, err = h.service.Authenticate(context.Background(), AuthenticateParams{Email: "carlo@example.com", Password: "bad"})
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("session store failures surface", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)
		h.sessions.createErr = errors.New("disk full")

		_, err := h.service.Authenticate(context.Background(), AuthenticateParams{Email: "anna@example.com", Password: "password-anna"})
		assert.EqualError(t, err, "disk full")
	})
}

func TestAuthService_Resolve(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	anna := staffUser("anna", permission.TierBase)
	revokedAt := now.Add(-time.Minute)

	h := newAuthHarness(t, now, anna)
	h.sessions.sessions["live"] = Session{ID: "s1", UserID: "anna", Token: "live", ExpiresAt: now.Add(time.Hour)}
	h.sessions.sessions["old"] = Session{ID: "s2", UserID: "anna", Token: "old", ExpiresAt: now}
	h.sessions.sessions["revoked"] = Session{ID: "s3", UserID: "anna", Token: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}
	h.sessions.sessions["orphan"] = Session{ID: "s4", UserID: "ghost", Token: "orphan", ExpiresAt: now.Add(time.Hour)}

	actor, err := h.service.Resolve(context.Background(), " live ")
	require.NoError(t, err)
	assert.Equal(t, ActorRegistered, actor.Kind)
	assert.Equal(t, "anna", actor.ID)

	tests := map[string]error{
		"":        ErrInvalidCredential,
		"missing": ErrInvalidCredential,
		"old":     ErrSessionExpired,
		"revoked": ErrSessionRevoked,
		"orphan":  ErrInvalidCredential,
	}
	for token, want := range tests {
		_, err := h.service.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, want, "token %q", token)
	}

	t.Run("deactivated user loses access immediately", func(t *testing.T) {
		inactive := anna
		inactive.Active = false
		local := newAuthHarness(t, now, inactive)
		local.sessions.sessions["live"] = Session{ID: "s1", UserID: "anna", Token: "live", ExpiresAt: now.Add(time.Hour)}

		_, err := local.service.Resolve(context.Background(), "live")
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})

	t.Run("shared tokens resolve without storage", func(t *testing.T) {
		token, claims, err := h.signer.Issue(SharedClaims{ActorID: "shared-9", DisplayName: "Cassa", Role: permission.RoleStaff, Tier: permission.TierAuthorized})
		require.NoError(t, err)

		actor, err := h.service.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, ActorSharedDirectAccess, actor.Kind)
		assert.Equal(t, "shared-9", actor.ID)
		require.NotNil(t, actor.ExpiresAt)
		assert.True(t, actor.ExpiresAt.Equal(claims.Expiry))

		_, err = h.service.Resolve(context.Background(), token+"x")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	anna := staffUser("anna", permission.TierBase)
	h := newAuthHarness(t, now, anna)
	h.sessions.sessions["live"] = Session{ID: "s1", UserID: "anna", Token: "live", ExpiresAt: now.Add(time.Hour)}

	require.NoError(t, h.service.RevokeSession(context.Background(), actorFor(anna), "live"))
	_, err := h.service.Resolve(context.Background(), "live")
	assert.ErrorIs(t, err, ErrSessionRevoked)
	assert.Equal(t, []AuditAction{AuditLogout}, h.audit.actions())

	assert.ErrorIs(t, h.service.RevokeSession(context.Background(), actorFor(anna), "unknown"), ErrInvalidCredential)
	assert.ErrorIs(t, h.service.RevokeSession(context.Background(), actorFor(anna), "a.b.c"), ErrInvalidCredential)
}

func TestAuthService_IssueSharedToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	admin := adminUser("dario")
	manager := staffUser("bruno", permission.TierAdminSecondary)
	h := newAuthHarness(t, now, admin, manager)

	result, err := h.service.IssueSharedToken(context.Background(), IssueSharedTokenParams{Actor: actorFor(admin), Tier: permission.TierAuthorized})
	require.NoError(t, err)
	assert.Equal(t, "Postazione condivisa", result.Claims.DisplayName)
	assert.Equal(t, permission.RoleStaff, result.Claims.Role)
	assert.Equal(t, "dario", result.Claims.IssuedBy)
	assert.Equal(t, "shared-tok-001", result.Claims.ActorID)

	resolved, err := h.service.Resolve(context.Background(), result.Token)
	require.NoError(t, err)
	assert.True(t, resolved.IsShared())

	_, err = h.service.IssueSharedToken(context.Background(), IssueSharedTokenParams{Actor: actorFor(manager)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.service.IssueSharedToken(context.Background(), IssueSharedTokenParams{Actor: resolved})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.service.IssueSharedToken(context.Background(), IssueSharedTokenParams{Actor: actorFor(admin), Tier: "GOD"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Message("tier"))
}

func TestAuthService_PruneSessions(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	h := newAuthHarness(t, now)
	h.sessions.sessions["a"] = Session{Token: "a", ExpiresAt: now.Add(-time.Hour)}
	h.sessions.sessions["b"] = Session{Token: "b", ExpiresAt: now.Add(time.Hour)}

	removed, err := h.service.PruneSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, h.sessions.sessions, 1)

	var nilService *AuthService
	_, err = nilService.PruneSessions(context.Background())
	assert.Error(t, err)
}

func TestAuthService_ChangePassword(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	anna := staffUser("anna", permission.TierBase)

	t.Run("new password replaces the old one", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)
		ctx := context.Background()

		require.NoError(t, h.service.ChangePassword(ctx, ChangePasswordParams{
			Actor:           actorFor(anna),
			CurrentPassword: "password-anna",
			NewPassword:     "nuova-password-lunga",
		}))

		_, err := h.service.Authenticate(ctx, AuthenticateParams{Email: anna.Email, Password: "password-anna"})
		assert.ErrorIs(t, err, ErrInvalidCredential)
		_, err = h.service.Authenticate(ctx, AuthenticateParams{Email: anna.Email, Password: "nuova-password-lunga"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(h.users.hashes[anna.ID], "$argon2id$"))
		assert.Contains(t, h.audit.actions(), AuditUpdate)
	})

	t.Run("wrong current password is a field error", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)
		before := h.users.hashes[anna.ID]

		err := h.service.ChangePassword(context.Background(), ChangePasswordParams{
			Actor:           actorFor(anna),
			CurrentPassword: "sbagliata",
			NewPassword:     "nuova-password-lunga",
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.NotEmpty(t, vErr.Message("current_password"))
		assert.False(t, errors.Is(err, ErrInvalidCredential))
		assert.Equal(t, before, h.users.hashes[anna.ID])
	})

	t.Run("short or unchanged new password", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)

		for _, candidate := range []string{"corta", "password-anna"} {
			err := h.service.ChangePassword(context.Background(), ChangePasswordParams{
				Actor:           actorFor(anna),
				CurrentPassword: "password-anna",
				NewPassword:     candidate,
			})
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr, candidate)
			assert.NotEmpty(t, vErr.Message("new_password"), candidate)
		}
	})

	t.Run("shared actors have no password", func(t *testing.T) {
		t.Parallel()
		h := newAuthHarness(t, now, anna)
		shared := NewSharedActor(SharedClaims{ActorID: "shared-1", Role: permission.RoleStaff, Tier: permission.TierBase, Expiry: now.Add(time.Hour)})

		err := h.service.ChangePassword(context.Background(), ChangePasswordParams{Actor: shared, CurrentPassword: "x", NewPassword: "nuova-password-lunga"})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
