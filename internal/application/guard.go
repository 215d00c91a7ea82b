package application

import "strings"

// CanView reports whether actor may read booking under the given request mode.
func CanView(actor Actor, booking Booking, mode RequestMode) bool {
	if strings.TrimSpace(actor.ID) == "" || booking.CreatorID == "" {
		return false
	}
	caps := actor.Capabilities()
	if caps.CanViewAllBookings {
		return true
	}
	if booking.CreatorID == actor.ID && actor.Active {
		return true
	}
	return mode == RequestModeSharedView && actor.Active
}

// CanModify reports whether actor may change or delete booking. Creators lose
// the right once the booking leaves PENDING.
func CanModify(actor Actor, booking Booking) bool {
	if strings.TrimSpace(actor.ID) == "" || booking.CreatorID == "" {
		return false
	}
	caps := actor.Capabilities()
	if caps.CanManageOthers {
		return true
	}
	return caps.CanCreate && booking.CreatorID == actor.ID && booking.Status == BookingStatusPending
}
