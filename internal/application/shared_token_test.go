package application

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/booking-manager/internal/permission"
)

func TestSharedTokenSigner(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

	t.Run("round trips claims and fixes expiry", func(t *testing.T) {
		t.Parallel()
		signer := NewSharedTokenSigner("secret", 0, fixedClock(issued))

		token, claims, err := signer.Issue(SharedClaims{ActorID: "shared-1", DisplayName: "Sala", Role: permission.RoleStaff, Tier: permission.TierAuthorized, IssuedBy: "admin-1"})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if strings.Count(token, ".") != 2 || !looksLikeSharedToken(token) {
			t.Fatalf("expected compact JWS, got %q", token)
		}
		if !claims.Expiry.Equal(issued.Add(DefaultSharedTokenTTL)) {
			t.Fatalf("unexpected expiry %s", claims.Expiry)
		}

		verified, err := signer.Verify(token)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verified.ActorID != "shared-1" || verified.Tier != permission.TierAuthorized || verified.Role != permission.RoleStaff || verified.IssuedBy != "admin-1" {
			t.Fatalf("unexpected claims %+v", verified)
		}
	})

	t.Run("staff tier is clamped at issue time", func(t *testing.T) {
		t.Parallel()
		signer := NewSharedTokenSigner("secret", time.Hour, fixedClock(issued))
		_, claims, err := signer.Issue(SharedClaims{ActorID: "shared-2", Role: permission.RoleStaff, Tier: permission.TierAdministrator})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if claims.Tier != permission.TierAdminSecondary {
			t.Fatalf("expected clamp, got %s", claims.Tier)
		}
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		t.Parallel()
		now := issued
		signer := NewSharedTokenSigner("secret", time.Hour, func() time.Time { return now })
		token, _, err := signer.Issue(SharedClaims{ActorID: "shared-3", Role: permission.RoleStaff, Tier: permission.TierBase})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		later := NewSharedTokenSigner("secret", time.Hour, fixedClock(issued.Add(2*time.Hour)))
		if _, err := later.Verify(token); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential, got %v", err)
		}
	})

	t.Run("rejects foreign signatures and malformed input", func(t *testing.T) {
		t.Parallel()
		signer := NewSharedTokenSigner("secret", time.Hour, fixedClock(issued))
		other := NewSharedTokenSigner("other", time.Hour, fixedClock(issued))
		token, _, err := other.Issue(SharedClaims{ActorID: "shared-4", Role: permission.RoleStaff, Tier: permission.TierBase})
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		for _, candidate := range []string{token, "", "a.b.c", "not-a-token"} {
			if _, err := signer.Verify(candidate); !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("Verify(%q) = %v, want ErrInvalidCredential", candidate, err)
			}
		}
	})

	t.Run("rejects tokens without expiry or with unknown tiers", func(t *testing.T) {
		t.Parallel()
		signer := NewSharedTokenSigner("secret", time.Hour, fixedClock(issued))

		noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, sharedTokenClaims{
			Role: "STAFF", Tier: "BASE",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: sharedTokenIssuer, Subject: "shared-5"},
		})
		raw, err := noExpiry.SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := signer.Verify(raw); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected missing exp to be rejected, got %v", err)
		}

		badTier := jwt.NewWithClaims(jwt.SigningMethodHS256, sharedTokenClaims{
			Role: "STAFF", Tier: "GOD",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: sharedTokenIssuer, Subject: "shared-6", ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour))},
		})
		raw, err = badTier.SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := signer.Verify(raw); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected unknown tier to be rejected, got %v", err)
		}
	})

	t.Run("issue requires a secret", func(t *testing.T) {
		t.Parallel()
		signer := NewSharedTokenSigner("", time.Hour, nil)
		if _, _, err := signer.Issue(SharedClaims{ActorID: "x"}); err == nil {
			t.Fatalf("expected error without secret")
		}
	})
}
