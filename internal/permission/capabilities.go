// Package permission holds the fixed mapping from permission tiers to the
// capabilities an actor is granted. Everything here is a pure lookup.
package permission

import "strings"

// Role is the coarse account role.
type Role string

const (
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

// Tier is the permission level attached to an actor, independent of role.
type Tier string

const (
	TierBase           Tier = "BASE"
	TierAuthorized     Tier = "AUTHORIZED"
	TierAdminSecondary Tier = "ADMIN_SECONDARY"
	TierAdministrator  Tier = "ADMINISTRATOR"
)

// CapabilitySet is the value object derived from a tier.
type CapabilitySet struct {
	CanCreate            bool `json:"can_create"`
	CanAutoApprove       bool `json:"can_auto_approve"`
	CanManageOthers      bool `json:"can_manage_others"`
	CanViewAllBookings   bool `json:"can_view_all_bookings"`
	CanManagePermissions bool `json:"can_manage_permissions"`
}

// For returns the capabilities granted to tier. Unknown tiers get nothing.
func For(tier Tier) CapabilitySet {
	switch tier {
	case TierBase:
		return CapabilitySet{CanCreate: true}
	case TierAuthorized:
		return CapabilitySet{CanCreate: true, CanAutoApprove: true}
	case TierAdminSecondary:
		return CapabilitySet{
			CanCreate:          true,
			CanAutoApprove:     true,
			CanManageOthers:    true,
			CanViewAllBookings: true,
		}
	case TierAdministrator:
		return CapabilitySet{
			CanCreate:            true,
			CanAutoApprove:       true,
			CanManageOthers:      true,
			CanViewAllBookings:   true,
			CanManagePermissions: true,
		}
	default:
		return CapabilitySet{}
	}
}

// Resolve returns the capabilities for a role/tier pair after clamping the
// tier to what the role allows.
func Resolve(role Role, tier Tier) CapabilitySet {
	return For(EffectiveTier(role, tier))
}

// EffectiveTier applies the role constraints: ADMIN always means
// ADMINISTRATOR, and STAFF never reaches ADMINISTRATOR.
func EffectiveTier(role Role, tier Tier) Tier {
	switch role {
	case RoleAdmin:
		return TierAdministrator
	case RoleStaff:
		if tier == TierAdministrator {
			return TierAdminSecondary
		}
		if !tier.Valid() {
			return ""
		}
		return tier
	default:
		return ""
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierBase, TierAuthorized, TierAdminSecondary, TierAdministrator:
		return true
	}
	return false
}

// Assignable reports whether an administrator may grant t to a staff account.
func (t Tier) Assignable() bool {
	switch t {
	case TierBase, TierAuthorized, TierAdminSecondary:
		return true
	}
	return false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleAdmin
}

// ParseTier normalizes user supplied tier names.
func ParseTier(value string) (Tier, bool) {
	tier := Tier(strings.ToUpper(strings.TrimSpace(value)))
	return tier, tier.Valid()
}

// ParseRole normalizes user supplied role names.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	return role, role.Valid()
}
