package application

import (
	"testing"
	"time"

	"github.com/example/booking-manager/internal/permission"
)

func TestCanView(t *testing.T) {
	t.Parallel()

	creator := actorFor(staffUser("anna", permission.TierBase))
	stranger := actorFor(staffUser("elena", permission.TierAuthorized))
	manager := actorFor(staffUser("bruno", permission.TierAdminSecondary))
	booking := Booking{ID: "b1", CreatorID: creator.ID, Status: BookingStatusPending}

	tests := []struct {
		name  string
		actor Actor
		mode  RequestMode
		want  bool
	}{
		{"creator personal", creator, RequestModePersonal, true},
		{"stranger personal", stranger, RequestModePersonal, false},
		{"stranger shared view", stranger, RequestModeSharedView, true},
		{"manager personal", manager, RequestModePersonal, true},
		{"missing actor id", Actor{Kind: ActorRegistered, Role: permission.RoleAdmin, Active: true}, RequestModeSharedView, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CanView(tc.actor, booking, tc.mode); got != tc.want {
				t.Fatalf("CanView = %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("booking without creator fails closed", func(t *testing.T) {
		t.Parallel()
		if CanView(manager, Booking{ID: "orphan"}, RequestModeSharedView) {
			t.Fatalf("expected orphan booking to be hidden")
		}
	})
}

func TestCanModify(t *testing.T) {
	t.Parallel()

	creator := actorFor(staffUser("anna", permission.TierAuthorized))
	manager := actorFor(staffUser("bruno", permission.TierAdminSecondary))
	admin := actorFor(adminUser("dario"))
	stranger := actorFor(staffUser("elena", permission.TierBase))

	for _, status := range []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected} {
		booking := Booking{ID: "b1", CreatorID: creator.ID, Status: status}

		if got, want := CanModify(creator, booking), status == BookingStatusPending; got != want {
			t.Fatalf("creator on %s: got %v want %v", status, got, want)
		}
		if !CanModify(manager, booking) || !CanModify(admin, booking) {
			t.Fatalf("managers must modify %s bookings", status)
		}
		if CanModify(stranger, booking) {
			t.Fatalf("stranger must not modify %s booking", status)
		}
	}

	t.Run("inactive creator is denied", func(t *testing.T) {
		t.Parallel()
		inactive := creator
		inactive.Active = false
		if CanModify(inactive, Booking{ID: "b1", CreatorID: creator.ID, Status: BookingStatusPending}) {
			t.Fatalf("expected inactive actor to be denied")
		}
	})

	t.Run("shared actor follows its embedded tier", func(t *testing.T) {
		t.Parallel()
		shared := NewSharedActor(SharedClaims{ActorID: "shared-1", Role: permission.RoleAdmin, Tier: permission.TierBase, Expiry: time.Now().Add(time.Hour)})
		if !CanModify(shared, Booking{ID: "b1", CreatorID: creator.ID, Status: BookingStatusConfirmed}) {
			t.Fatalf("expected ADMIN shared actor to manage bookings")
		}
	})
}

func TestActorCapabilities(t *testing.T) {
	t.Parallel()

	staff := staffUser("anna", permission.TierAdministrator)
	actor := NewRegisteredActor(staff)
	if actor.Tier != permission.TierAdminSecondary {
		t.Fatalf("expected staff tier to be clamped, got %s", actor.Tier)
	}
	if actor.Capabilities().CanManagePermissions {
		t.Fatalf("staff must never manage permissions")
	}

	if (Actor{Kind: "ROBOT", ID: "x", Role: permission.RoleAdmin, Active: true}).Capabilities() != (permission.CapabilitySet{}) {
		t.Fatalf("unknown actor kinds get no capabilities")
	}

	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	shared := NewSharedActor(SharedClaims{ActorID: "shared-1", DisplayName: "Cassa", Role: permission.RoleStaff, Tier: permission.TierAuthorized, Expiry: expiry})
	if !shared.IsShared() || shared.ExpiresAt == nil || !shared.ExpiresAt.Equal(expiry) {
		t.Fatalf("unexpected shared actor %+v", shared)
	}
	if !shared.Capabilities().CanAutoApprove {
		t.Fatalf("expected AUTHORIZED shared actor to auto approve")
	}
}
