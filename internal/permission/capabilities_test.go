package permission

import "testing"

func TestFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier Tier
		want CapabilitySet
	}{
		{TierBase, CapabilitySet{CanCreate: true}},
		{TierAuthorized, CapabilitySet{CanCreate: true, CanAutoApprove: true}},
		{TierAdminSecondary, CapabilitySet{CanCreate: true, CanAutoApprove: true, CanManageOthers: true, CanViewAllBookings: true}},
		{TierAdministrator, CapabilitySet{CanCreate: true, CanAutoApprove: true, CanManageOthers: true, CanViewAllBookings: true, CanManagePermissions: true}},
		{Tier("SUPERUSER"), CapabilitySet{}},
		{Tier(""), CapabilitySet{}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.tier), func(t *testing.T) {
			t.Parallel()
			if got := For(tc.tier); got != tc.want {
				t.Fatalf("For(%q) = %+v, want %+v", tc.tier, got, tc.want)
			}
		})
	}
}

func TestEffectiveTier(t *testing.T) {
	t.Parallel()

	t.Run("admin role always maps to administrator", func(t *testing.T) {
		t.Parallel()
		for _, tier := range []Tier{TierBase, TierAuthorized, TierAdminSecondary, TierAdministrator, ""} {
			if got := EffectiveTier(RoleAdmin, tier); got != TierAdministrator {
				t.Fatalf("EffectiveTier(ADMIN, %q) = %q", tier, got)
			}
		}
	})

	t.Run("staff cannot exceed admin secondary", func(t *testing.T) {
		t.Parallel()
		if got := EffectiveTier(RoleStaff, TierAdministrator); got != TierAdminSecondary {
			t.Fatalf("expected clamp to ADMIN_SECONDARY, got %q", got)
		}
		if got := EffectiveTier(RoleStaff, TierAuthorized); got != TierAuthorized {
			t.Fatalf("expected AUTHORIZED to pass through, got %q", got)
		}
	})

	t.Run("unknown role or tier fails closed", func(t *testing.T) {
		t.Parallel()
		if got := Resolve(Role("GUEST"), TierAdministrator); got != (CapabilitySet{}) {
			t.Fatalf("expected no capabilities for unknown role, got %+v", got)
		}
		if got := Resolve(RoleStaff, Tier("bogus")); got != (CapabilitySet{}) {
			t.Fatalf("expected no capabilities for unknown tier, got %+v", got)
		}
	})
}

func TestTierAssignable(t *testing.T) {
	t.Parallel()

	if TierAdministrator.Assignable() {
		t.Fatalf("administrator tier must not be assignable")
	}
	for _, tier := range []Tier{TierBase, TierAuthorized, TierAdminSecondary} {
		if !tier.Assignable() {
			t.Fatalf("expected %q to be assignable", tier)
		}
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	tier, ok := ParseTier(" admin_secondary ")
	if !ok || tier != TierAdminSecondary {
		t.Fatalf("ParseTier returned %q, %v", tier, ok)
	}
	if _, ok := ParseTier("root"); ok {
		t.Fatalf("expected unknown tier to be rejected")
	}
	if role, ok := ParseRole("staff"); !ok || role != RoleStaff {
		t.Fatalf("ParseRole returned %q, %v", role, ok)
	}
}
