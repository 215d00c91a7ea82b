package application

import (
	"strings"
	"testing"
	"time"
)

func TestValidateBookingInput(t *testing.T) {
	t.Parallel()

	const today = "2024-12-01"

	tests := []struct {
		name   string
		mutate func(*BookingInput)
		today  string
		fields []string
	}{
		{name: "valid standard", mutate: func(*BookingInput) {}},
		{name: "missing names", mutate: func(in *BookingInput) { in.CustomerName, in.CustomerSurname = "", "" }, fields: []string{"customer_name", "customer_surname"}},
		{name: "no guests", mutate: func(in *BookingInput) { in.Adults = 0 }, fields: []string{"adults"}},
		{name: "negative teens", mutate: func(in *BookingInput) { in.Teens = -1 }, fields: []string{"teens"}},
		{name: "bad phone", mutate: func(in *BookingInput) { in.Phone = "abc" }, fields: []string{"phone"}},
		{name: "short phone", mutate: func(in *BookingInput) { in.Phone = "12345" }, fields: []string{"phone"}},
		{name: "bad time", mutate: func(in *BookingInput) { in.ArrivalTime = "24:00" }, fields: []string{"arrival_time"}},
		{name: "bad date", mutate: func(in *BookingInput) { in.ReservationDate = "2024-13-40" }, fields: []string{"reservation_date"}},
		{name: "past date", mutate: func(in *BookingInput) { in.ReservationDate = "2024-11-30" }, today: today, fields: []string{"reservation_date"}},
		{name: "past date without reference", mutate: func(in *BookingInput) { in.ReservationDate = "2024-11-30" }},
		{name: "unknown room", mutate: func(in *BookingInput) { in.Room = "GARAGE" }, fields: []string{"room"}},
		{name: "unknown kind", mutate: func(in *BookingInput) { in.Kind = "BRUNCH" }, fields: []string{"kind"}},
		{name: "long notes", mutate: func(in *BookingInput) { in.Notes = strings.Repeat("x", 1001) }, fields: []string{"notes"}},
		{name: "short menu on standard", mutate: func(in *BookingInput) { in.MenuType = "ab" }, fields: []string{"menu_type"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			input := standardInput("2024-12-10", "19:30")
			tc.mutate(&input)

			vErr := validateBookingInput(normalizeBookingInput(input), tc.today)
			if len(tc.fields) == 0 {
				if vErr.HasErrors() {
					t.Fatalf("expected no errors, got %v", vErr.FieldErrors)
				}
				return
			}
			if len(vErr.FieldErrors) != len(tc.fields) {
				t.Fatalf("expected fields %v, got %v", tc.fields, vErr.FieldErrors)
			}
			for _, field := range tc.fields {
				if vErr.Message(field) == "" {
					t.Fatalf("expected error on %s, got %v", field, vErr.FieldErrors)
				}
			}
		})
	}
}

func TestValidateBookingInput_Event(t *testing.T) {
	t.Parallel()

	valid := eventInput("2024-12-20")
	if vErr := validateBookingInput(normalizeBookingInput(valid), "2024-12-01"); vErr.HasErrors() {
		t.Fatalf("expected valid event, got %v", vErr.FieldErrors)
	}

	missing := valid
	missing.EventName = ""
	missing.MenuType = ""
	missing.Participants = 0
	vErr := validateBookingInput(normalizeBookingInput(missing), "")
	for _, field := range []string{"event_name", "menu_type", "participants"} {
		if vErr.Message(field) == "" {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}

	tooMany := valid
	tooMany.Participants = 501
	if vErr := validateBookingInput(normalizeBookingInput(tooMany), ""); vErr.Message("participants") == "" {
		t.Fatalf("expected participants upper bound, got %v", vErr.FieldErrors)
	}
}

func TestNormalizeBookingInput(t *testing.T) {
	t.Parallel()

	got := normalizeBookingInput(BookingInput{
		Kind:         " event ",
		CustomerName: "  Mario ",
		ArrivalTime:  " 9:05",
		Room:         "glass",
	})
	if got.Kind != BookingKindEvent {
		t.Fatalf("expected EVENT, got %q", got.Kind)
	}
	if got.CustomerName != "Mario" {
		t.Fatalf("expected trimmed name, got %q", got.CustomerName)
	}
	if got.ArrivalTime != "09:05" {
		t.Fatalf("expected padded time, got %q", got.ArrivalTime)
	}
	if got.Room != RoomGlass {
		t.Fatalf("expected GLASS, got %q", got.Room)
	}

	if defaulted := normalizeBookingInput(BookingInput{}); defaulted.Kind != BookingKindStandard {
		t.Fatalf("expected default STANDARD kind, got %q", defaulted.Kind)
	}
}

func TestValidateRejectionReason(t *testing.T) {
	t.Parallel()

	if vErr := validateRejectionReason(""); vErr.Message("rejection_reason") == "" {
		t.Fatalf("expected required error")
	}
	if vErr := validateRejectionReason("no"); vErr.Message("rejection_reason") == "" {
		t.Fatalf("expected length error")
	}
	if vErr := validateRejectionReason(strings.Repeat("a", 501)); vErr.Message("rejection_reason") == "" {
		t.Fatalf("expected upper bound error")
	}
	if vErr := validateRejectionReason("Sala al completo"); vErr != nil {
		t.Fatalf("expected valid reason, got %v", vErr.FieldErrors)
	}
}

func TestValidateDateRange(t *testing.T) {
	t.Parallel()

	if vErr := validateDateRange("2024-12-01", "2024-12-31"); vErr.HasErrors() {
		t.Fatalf("unexpected errors %v", vErr.FieldErrors)
	}
	if vErr := validateDateRange("2024-12-31", "2024-12-01"); vErr.Message("date_to") == "" {
		t.Fatalf("expected inverted range to fail")
	}
	if vErr := validateDateRange("ieri", ""); vErr.Message("date_from") == "" {
		t.Fatalf("expected malformed date_from to fail")
	}
}

func TestCheckBookingInvariants(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	valid := Booking{ID: "b1", Status: BookingStatusConfirmed, CreatorID: "anna", ProcessorID: "bruno", ProcessedAt: &at}
	if err := checkBookingInvariants(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]Booking{
		"unknown status":         {ID: "b", Status: "LOST", CreatorID: "anna"},
		"missing creator":        {ID: "b", Status: BookingStatusPending},
		"rejected without cause": {ID: "b", Status: BookingStatusRejected, CreatorID: "anna", ProcessorID: "bruno", ProcessedAt: &at},
		"terminal unprocessed":   {ID: "b", Status: BookingStatusConfirmed, CreatorID: "anna"},
	}
	for name, booking := range cases {
		if err := checkBookingInvariants(booking); err == nil {
			t.Fatalf("%s: expected invariant violation", name)
		}
	}
}
