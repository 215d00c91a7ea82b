package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/booking-manager/internal/permission"
)

const sharedTokenIssuer = "booking-manager/shared"

// DefaultSharedTokenTTL is the fixed validity window of shared terminal tokens.
const DefaultSharedTokenTTL = 30 * 24 * time.Hour

// SharedClaims is the verified payload of a shared direct access token.
type SharedClaims struct {
	ActorID     string
	DisplayName string
	Role        permission.Role
	Tier        permission.Tier
	IssuedBy    string
	IssuedAt    time.Time
	Expiry      time.Time
}

type sharedTokenClaims struct {
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	Tier        string `json:"tier"`
	IssuedBy    string `json:"iby,omitempty"`
	jwt.RegisteredClaims
}

// SharedTokenSigner issues and verifies HS256 shared access tokens. Verifying
// needs no storage lookup.
type SharedTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSharedTokenSigner constructs a signer. A non-positive ttl falls back to
// DefaultSharedTokenTTL.
func NewSharedTokenSigner(secret string, ttl time.Duration, now func() time.Time) *SharedTokenSigner {
	if ttl <= 0 {
		ttl = DefaultSharedTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SharedTokenSigner{secret: []byte(secret), ttl: ttl, now: now}
}

// TTL returns the configured validity window.
func (s *SharedTokenSigner) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.ttl
}

// Issue signs claims. IssuedAt and Expiry are always computed from the signer clock.
func (s *SharedTokenSigner) Issue(claims SharedClaims) (string, SharedClaims, error) {
	if s == nil {
		return "", SharedClaims{}, fmt.Errorf("SharedTokenSigner is nil")
	}
	if len(s.secret) == 0 {
		return "", SharedClaims{}, fmt.Errorf("shared token secret not configured")
	}
	if strings.TrimSpace(claims.ActorID) == "" {
		return "", SharedClaims{}, fmt.Errorf("shared token subject is required")
	}

	now := s.now().UTC().Truncate(time.Second)
	claims.IssuedAt = now
	claims.Expiry = now.Add(s.ttl)
	claims.Tier = permission.EffectiveTier(claims.Role, claims.Tier)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sharedTokenClaims{
		DisplayName: claims.DisplayName,
		Role:        string(claims.Role),
		Tier:        string(claims.Tier),
		IssuedBy:    claims.IssuedBy,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sharedTokenIssuer,
			Subject:   claims.ActorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(claims.Expiry),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", SharedClaims{}, err
	}
	return signed, claims, nil
}

// Verify parses a token and returns its claims. Every failure is reported as
// ErrInvalidCredential.
func (s *SharedTokenSigner) Verify(raw string) (SharedClaims, error) {
	if s == nil || len(s.secret) == 0 {
		return SharedClaims{}, ErrInvalidCredential
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SharedClaims{}, ErrInvalidCredential
	}

	parsed := &sharedTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, parsed, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sharedTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SharedClaims{}, fmt.Errorf("%w: shared token expired", ErrInvalidCredential)
		}
		return SharedClaims{}, ErrInvalidCredential
	}
	if !token.Valid || parsed.Subject == "" {
		return SharedClaims{}, ErrInvalidCredential
	}

	role, ok := permission.ParseRole(parsed.Role)
	if !ok {
		return SharedClaims{}, ErrInvalidCredential
	}
	tier, ok := permission.ParseTier(parsed.Tier)
	if !ok {
		return SharedClaims{}, ErrInvalidCredential
	}

	claims := SharedClaims{
		ActorID:     parsed.Subject,
		DisplayName: parsed.DisplayName,
		Role:        role,
		Tier:        tier,
		IssuedBy:    parsed.IssuedBy,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.Expiry = parsed.ExpiresAt.Time
	}
	return claims, nil
}

// looksLikeSharedToken distinguishes signed tokens from opaque session tokens.
func looksLikeSharedToken(token string) bool {
	return strings.Count(token, ".") == 2
}
