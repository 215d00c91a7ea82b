package application

import (
	"strings"
	"time"

	"github.com/example/booking-manager/internal/permission"
)

// ActorKind tags the variant of an Actor.
type ActorKind string

const (
	// ActorRegistered is a persisted staff or administrator account.
	ActorRegistered ActorKind = "REGISTERED"
	// ActorSharedDirectAccess is synthesized from a signed token and never stored.
	ActorSharedDirectAccess ActorKind = "SHARED_DIRECT_ACCESS"
)

// Actor is the authenticated party behind a request.
type Actor struct {
	Kind        ActorKind
	ID          string
	DisplayName string
	Email       string
	Role        permission.Role
	Tier        permission.Tier
	Active      bool
	LastSeenAt  *time.Time
	// ExpiresAt is only set for shared direct access actors.
	ExpiresAt *time.Time
}

// NewRegisteredActor builds an actor from a stored user.
func NewRegisteredActor(user User) Actor {
	return Actor{
		Kind:        ActorRegistered,
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		Tier:        permission.EffectiveTier(user.Role, user.Tier),
		Active:      user.Active,
		LastSeenAt:  user.LastSeenAt,
	}
}

// NewSharedActor builds an actor from verified shared token claims.
func NewSharedActor(claims SharedClaims) Actor {
	expires := claims.Expiry
	return Actor{
		Kind:        ActorSharedDirectAccess,
		ID:          claims.ActorID,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		Tier:        permission.EffectiveTier(claims.Role, claims.Tier),
		Active:      true,
		ExpiresAt:   &expires,
	}
}

// Capabilities resolves the fixed capability set for the actor. An actor
// without an id or an inactive one gets nothing.
func (a Actor) Capabilities() permission.CapabilitySet {
	if strings.TrimSpace(a.ID) == "" || !a.Active {
		return permission.CapabilitySet{}
	}
	switch a.Kind {
	case ActorRegistered, ActorSharedDirectAccess:
		return permission.Resolve(a.Role, a.Tier)
	default:
		return permission.CapabilitySet{}
	}
}

// IsShared reports whether the actor came from a shared terminal token.
func (a Actor) IsShared() bool {
	return a.Kind == ActorSharedDirectAccess
}
