package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/booking-manager/internal/permission"
)

type auditReaderStub struct {
	entries []AuditEntry
	queries []AuditQuery
}

func (a *auditReaderStub) ListAuditEntries(_ context.Context, query AuditQuery) ([]AuditEntry, error) {
	a.queries = append(a.queries, query)
	return a.entries, nil
}

func plainHasher(password string) (string, error) {
	return "hashed:" + password, nil
}

func TestAdminService_RegisterStaff(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	admin := adminUser("dario")
	manager := staffUser("bruno", permission.TierAdminSecondary)

	t.Run("creates an active staff account", func(t *testing.T) {
		t.Parallel()
		users := newUserDirectoryStub(admin)
		audit := &auditRecorderStub{}
		svc := NewAdminService(users, nil, audit, plainHasher, sequenceIDs("user"), fixedClock(now), nil)

		user, err := svc.RegisterStaff(context.Background(), RegisterStaffParams{
			Actor: actorFor(admin), Email: " Giulia@Example.com ", DisplayName: "Giulia", Password: "segreta123", Tier: permission.TierAuthorized,
		})
		require.NoError(t, err)
		assert.Equal(t, "user-001", user.ID)
		assert.Equal(t, "giulia@example.com", user.Email)
		assert.Equal(t, permission.RoleStaff, user.Role)
		assert.Equal(t, permission.TierAuthorized, user.Tier)
		assert.True(t, user.Active)
		require.Len(t, users.created, 1)
		assert.Equal(t, "hashed:segreta123", users.created[0].PasswordHash)
		assert.Equal(t, []AuditAction{AuditCreate}, audit.actions())
	})

	t.Run("validates every field", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(newUserDirectoryStub(admin), nil, nil, plainHasher, nil, fixedClock(now), nil)

		_, err := svc.RegisterStaff(context.Background(), RegisterStaffParams{
			Actor: actorFor(admin), Email: "not-an-email", DisplayName: "G", Password: "short", Tier: permission.TierAdministrator,
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		for _, field := range []string{"email", "display_name", "password", "tier"} {
			assert.NotEmpty(t, vErr.Message(field), field)
		}
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		t.Parallel()
		existing := staffUser("giulia", permission.TierBase)
		svc := NewAdminService(newUserDirectoryStub(admin, existing), nil, nil, plainHasher, sequenceIDs("user"), fixedClock(now), nil)

		_, err := svc.RegisterStaff(context.Background(), RegisterStaffParams{
			Actor: actorFor(admin), Email: "giulia@example.com", DisplayName: "Giulia", Password: "segreta123",
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("only administrators may register", func(t *testing.T) {
		t.Parallel()
		svc := NewAdminService(newUserDirectoryStub(admin), nil, nil, plainHasher, nil, fixedClock(now), nil)

		_, err := svc.RegisterStaff(context.Background(), RegisterStaffParams{
			Actor: actorFor(manager), Email: "x@example.com", DisplayName: "Xavier", Password: "segreta123",
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestAdminService_SetTierAndActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	admin := adminUser("dario")
	anna := staffUser("anna", permission.TierBase)
	other := adminUser("zeno")

	users := newUserDirectoryStub(admin, anna, other)
	audit := &auditRecorderStub{}
	svc := NewAdminService(users, nil, audit, plainHasher, nil, fixedClock(now), nil)
	ctx := context.Background()

	updated, err := svc.SetTier(ctx, SetTierParams{Actor: actorFor(admin), UserID: "anna", Tier: permission.TierAdminSecondary})
	require.NoError(t, err)
	assert.Equal(t, permission.TierAdminSecondary, updated.Tier)
	assert.Equal(t, "BASE", audit.entries[0].Details["tier_from"])

	_, err = svc.SetTier(ctx, SetTierParams{Actor: actorFor(admin), UserID: "anna", Tier: permission.TierAdministrator})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.SetTier(ctx, SetTierParams{Actor: actorFor(admin), UserID: "zeno", Tier: permission.TierBase})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.SetTier(ctx, SetTierParams{Actor: actorFor(admin), UserID: "ghost", Tier: permission.TierBase})
	assert.ErrorIs(t, err, ErrNotFound)

	deactivated, err := svc.SetActive(ctx, SetActiveParams{Actor: actorFor(admin), UserID: "anna", Active: false})
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	_, err = svc.SetActive(ctx, SetActiveParams{Actor: actorFor(admin), UserID: "dario", Active: false})
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Message("active"))

	listed, err := svc.ListUsers(ctx, actorFor(admin))
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "anna", listed[0].ID)
	assert.Equal(t, "zeno", listed[2].ID)

	_, err = svc.ListUsers(ctx, actorFor(anna))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminService_ListAudit(t *testing.T) {
	t.Parallel()

	admin := adminUser("dario")
	reader := &auditReaderStub{entries: []AuditEntry{{ID: "a1", Action: AuditLogin}}}
	svc := NewAdminService(newUserDirectoryStub(admin), reader, nil, plainHasher, nil, nil, nil)

	entries, err := svc.ListAudit(context.Background(), actorFor(admin), AuditQuery{Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	require.Len(t, reader.queries, 1)
	assert.Equal(t, MaxPageSize, reader.queries[0].Limit)

	shared := NewSharedActor(SharedClaims{ActorID: "shared-1", Role: permission.RoleAdmin, Tier: permission.TierAdministrator, Expiry: time.Now().Add(time.Hour)})
	_, err = svc.ListAudit(context.Background(), shared, AuditQuery{})
	assert.ErrorIs(t, err, ErrForbidden)
}
