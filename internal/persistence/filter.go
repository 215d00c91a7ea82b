package persistence

import (
	"sort"
	"strings"
)

// Matches reports whether booking satisfies every set criterion of f.
func (f BookingFilter) Matches(booking Booking) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if booking.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Kind != "" && booking.Kind != f.Kind {
		return false
	}
	if f.Room != "" && booking.Room != f.Room {
		return false
	}
	if f.CreatorID != "" && booking.CreatorID != f.CreatorID {
		return false
	}
	if f.DateFrom != "" && booking.ReservationDate < f.DateFrom {
		return false
	}
	if f.DateTo != "" && booking.ReservationDate > f.DateTo {
		return false
	}
	if f.CreatedBefore != nil && booking.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		haystack := strings.ToLower(strings.Join([]string{
			booking.CustomerName,
			booking.CustomerSurname,
			booking.EventName,
			booking.Phone,
		}, " "))
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// Paginate applies Offset and Limit to an already ordered slice.
func (f BookingFilter) Paginate(bookings []Booking) []Booking {
	if f.Offset > 0 {
		if f.Offset >= len(bookings) {
			return []Booking{}
		}
		bookings = bookings[f.Offset:]
	}
	if f.Limit > 0 && len(bookings) > f.Limit {
		bookings = bookings[:f.Limit]
	}
	return bookings
}

// SortBookings orders bookings by reservation date then arrival time, both
// descending, with the id as a stable tiebreaker.
func SortBookings(bookings []Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].ReservationDate != bookings[j].ReservationDate {
			return bookings[i].ReservationDate > bookings[j].ReservationDate
		}
		if bookings[i].ArrivalTime != bookings[j].ArrivalTime {
			return bookings[i].ArrivalTime > bookings[j].ArrivalTime
		}
		return bookings[i].ID < bookings[j].ID
	})
}
