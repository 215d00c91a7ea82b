package application

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	dateLayout = "2006-01-02"

	minNameLength         = 2
	maxNameLength         = 100
	minEventNameLength    = 3
	maxEventNameLength    = 200
	minMenuTypeLength     = 3
	maxMenuTypeLength     = 100
	maxNotesLength        = 1000
	maxAllergiesLength    = 1000
	maxPackageLabelLength = 100
	minReasonLength       = 5
	maxReasonLength       = 500

	maxAdults       = 200
	maxMinorGuests  = 100
	minParticipants = 1
	maxParticipants = 500
)

var (
	phonePattern       = regexp.MustCompile(`^[+]?[\d\s\-\(\)]{8,20}$`)
	arrivalTimePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):([0-5][0-9])$`)
)

func normalizeBookingInput(input BookingInput) BookingInput {
	out := input
	out.Kind = BookingKind(strings.ToUpper(strings.TrimSpace(string(input.Kind))))
	if out.Kind == "" {
		out.Kind = BookingKindStandard
	}
	out.CustomerName = strings.TrimSpace(input.CustomerName)
	out.CustomerSurname = strings.TrimSpace(input.CustomerSurname)
	out.EventName = strings.TrimSpace(input.EventName)
	out.Phone = strings.TrimSpace(input.Phone)
	out.ReservationDate = strings.TrimSpace(input.ReservationDate)
	out.ArrivalTime = normalizeArrivalTime(input.ArrivalTime)
	out.Room = Room(strings.ToUpper(strings.TrimSpace(string(input.Room))))
	out.MenuType = strings.TrimSpace(input.MenuType)
	out.Allergies = strings.TrimSpace(input.Allergies)
	out.PackageLabel = strings.TrimSpace(input.PackageLabel)
	out.Notes = strings.TrimSpace(input.Notes)
	return out
}

// normalizeArrivalTime zero pads single digit hours so that lexical ordering
// matches chronological ordering. Malformed values are returned trimmed.
func normalizeArrivalTime(value string) string {
	value = strings.TrimSpace(value)
	matches := arrivalTimePattern.FindStringSubmatch(value)
	if matches == nil {
		return value
	}
	hour := matches[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + matches[2]
}

// validateBookingInput checks a normalized input. When today is non-empty the
// reservation date must not precede it.
func validateBookingInput(input BookingInput, today string) *ValidationError {
	vErr := &ValidationError{}

	if !input.Kind.Valid() {
		vErr.add("kind", "Tipo deve essere STANDARD o EVENT")
	}

	switch input.Kind {
	case BookingKindEvent:
		validateLength(vErr, "event_name", input.EventName, minEventNameLength, maxEventNameLength, true,
			"Nome evento è richiesto per gli eventi", "Nome evento deve essere tra 3 e 200 caratteri")
		validateLength(vErr, "customer_name", input.CustomerName, minNameLength, maxNameLength, false,
			"", "Nome cliente deve essere tra 2 e 100 caratteri")
		validateLength(vErr, "customer_surname", input.CustomerSurname, minNameLength, maxNameLength, false,
			"", "Cognome cliente deve essere tra 2 e 100 caratteri")
		if input.Participants < minParticipants || input.Participants > maxParticipants {
			vErr.add("participants", "Numero partecipanti deve essere tra 1 e 500")
		}
		validateLength(vErr, "menu_type", input.MenuType, minMenuTypeLength, maxMenuTypeLength, true,
			"Tipo menu è richiesto per gli eventi", "Tipo menu deve essere tra 3 e 100 caratteri")
		validateGuestRange(vErr, "children", input.Children, maxMinorGuests, "Numero bambini deve essere tra 0 e 100")
		validateGuestRange(vErr, "infants", input.Infants, maxMinorGuests, "Numero neonati deve essere tra 0 e 100")
	default:
		validateLength(vErr, "customer_name", input.CustomerName, minNameLength, maxNameLength, true,
			"Nome cliente è richiesto", "Nome cliente deve essere tra 2 e 100 caratteri")
		validateLength(vErr, "customer_surname", input.CustomerSurname, minNameLength, maxNameLength, true,
			"Cognome cliente è richiesto", "Cognome cliente deve essere tra 2 e 100 caratteri")
		validateGuestRange(vErr, "adults", input.Adults, maxAdults, "Numero adulti deve essere tra 0 e 200")
		validateGuestRange(vErr, "teens", input.Teens, maxMinorGuests, "Numero ragazzi deve essere tra 0 e 100")
		validateGuestRange(vErr, "children", input.Children, maxMinorGuests, "Numero bambini deve essere tra 0 e 100")
		validateGuestRange(vErr, "infants", input.Infants, maxMinorGuests, "Numero neonati deve essere tra 0 e 100")
		if input.Adults+input.Teens+input.Children+input.Infants < 1 {
			vErr.add("adults", "Inserire almeno un ospite")
		}
		validateLength(vErr, "menu_type", input.MenuType, minMenuTypeLength, maxMenuTypeLength, false,
			"", "Tipo menu deve essere tra 3 e 100 caratteri")
	}

	if input.Phone == "" {
		vErr.add("phone", "Telefono è richiesto")
	} else if !phonePattern.MatchString(input.Phone) {
		vErr.add("phone", "Formato telefono non valido")
	}

	if input.ReservationDate == "" {
		vErr.add("reservation_date", "Data prenotazione è richiesta")
	} else if _, err := time.Parse(dateLayout, input.ReservationDate); err != nil {
		vErr.add("reservation_date", "Data prenotazione non valida")
	} else if today != "" && input.ReservationDate < today {
		vErr.add("reservation_date", "Non puoi prenotare per una data passata")
	}

	if !arrivalTimePattern.MatchString(input.ArrivalTime) {
		vErr.add("arrival_time", "Formato orario non valido (HH:MM)")
	}

	if input.Room != "" && !input.Room.Valid() {
		vErr.add("room", "Sala non valida")
	}

	if utf8.RuneCountInString(input.Notes) > maxNotesLength {
		vErr.add("notes", "Note troppo lunghe (massimo 1000 caratteri)")
	}
	if utf8.RuneCountInString(input.Allergies) > maxAllergiesLength {
		vErr.add("allergies", "Allergie troppo lunghe (massimo 1000 caratteri)")
	}
	if utf8.RuneCountInString(input.PackageLabel) > maxPackageLabelLength {
		vErr.add("package_label", "Pacchetto troppo lungo (massimo 100 caratteri)")
	}

	return vErr
}

func validateLength(vErr *ValidationError, field, value string, minLen, maxLen int, required bool, requiredMsg, rangeMsg string) {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		if required {
			vErr.add(field, requiredMsg)
		}
		return
	}
	if n < minLen || n > maxLen {
		vErr.add(field, rangeMsg)
	}
}

func validateGuestRange(vErr *ValidationError, field string, value, maxValue int, message string) {
	if value < 0 || value > maxValue {
		vErr.add(field, message)
	}
}

func validateRejectionReason(reason string) *ValidationError {
	n := utf8.RuneCountInString(reason)
	if n == 0 {
		return newValidationError("rejection_reason", "Motivo rifiuto è richiesto quando si rifiuta una prenotazione")
	}
	if n < minReasonLength || n > maxReasonLength {
		return newValidationError("rejection_reason", "Motivo rifiuto deve essere tra 5 e 500 caratteri")
	}
	return nil
}

// validateDateRange checks optional list filter bounds.
func validateDateRange(from, to string) *ValidationError {
	vErr := &ValidationError{}
	if from != "" {
		if _, err := time.Parse(dateLayout, from); err != nil {
			vErr.add("date_from", "Data inizio non valida")
		}
	}
	if to != "" {
		if _, err := time.Parse(dateLayout, to); err != nil {
			vErr.add("date_to", "Data fine non valida")
		}
	}
	if !vErr.HasErrors() && from != "" && to != "" && to < from {
		vErr.add("date_to", "Data fine deve essere successiva alla data inizio")
	}
	return vErr
}

func bookingInputFrom(b Booking) BookingInput {
	return BookingInput{
		Kind:            b.Kind,
		CustomerName:    b.CustomerName,
		CustomerSurname: b.CustomerSurname,
		EventName:       b.EventName,
		Phone:           b.Phone,
		ReservationDate: b.ReservationDate,
		ArrivalTime:     b.ArrivalTime,
		Room:            b.Room,
		Adults:          b.Adults,
		Teens:           b.Teens,
		Children:        b.Children,
		Infants:         b.Infants,
		Participants:    b.Participants,
		MenuType:        b.MenuType,
		Allergies:       b.Allergies,
		PackageLabel:    b.PackageLabel,
		Notes:           b.Notes,
	}
}

// applyBookingInput overwrites every caller owned field of b.
func applyBookingInput(b *Booking, input BookingInput) {
	b.Kind = input.Kind
	b.CustomerName = input.CustomerName
	b.CustomerSurname = input.CustomerSurname
	b.EventName = input.EventName
	b.Phone = input.Phone
	b.ReservationDate = input.ReservationDate
	b.ArrivalTime = input.ArrivalTime
	b.Room = input.Room
	b.Adults = input.Adults
	b.Teens = input.Teens
	b.Children = input.Children
	b.Infants = input.Infants
	b.Participants = input.Participants
	b.MenuType = input.MenuType
	b.Allergies = input.Allergies
	b.PackageLabel = input.PackageLabel
	b.Notes = input.Notes
}

func applyBookingPatch(input BookingInput, patch BookingPatch) BookingInput {
	if patch.CustomerName != nil {
		input.CustomerName = *patch.CustomerName
	}
	if patch.CustomerSurname != nil {
		input.CustomerSurname = *patch.CustomerSurname
	}
	if patch.EventName != nil {
		input.EventName = *patch.EventName
	}
	if patch.Phone != nil {
		input.Phone = *patch.Phone
	}
	if patch.ReservationDate != nil {
		input.ReservationDate = *patch.ReservationDate
	}
	if patch.ArrivalTime != nil {
		input.ArrivalTime = *patch.ArrivalTime
	}
	if patch.Room != nil {
		input.Room = *patch.Room
	}
	if patch.Adults != nil {
		input.Adults = *patch.Adults
	}
	if patch.Teens != nil {
		input.Teens = *patch.Teens
	}
	if patch.Children != nil {
		input.Children = *patch.Children
	}
	if patch.Infants != nil {
		input.Infants = *patch.Infants
	}
	if patch.Participants != nil {
		input.Participants = *patch.Participants
	}
	if patch.MenuType != nil {
		input.MenuType = *patch.MenuType
	}
	if patch.Allergies != nil {
		input.Allergies = *patch.Allergies
	}
	if patch.PackageLabel != nil {
		input.PackageLabel = *patch.PackageLabel
	}
	if patch.Notes != nil {
		input.Notes = *patch.Notes
	}
	return input
}

// checkBookingInvariants guards the status related invariants before any write.
func checkBookingInvariants(b Booking) error {
	if !b.Status.Valid() {
		return fmt.Errorf("booking %s: unknown status %q", b.ID, b.Status)
	}
	if b.CreatorID == "" {
		return fmt.Errorf("booking %s: creator is required", b.ID)
	}
	if b.Status == BookingStatusRejected && strings.TrimSpace(b.RejectionReason) == "" {
		return fmt.Errorf("booking %s: rejected without reason", b.ID)
	}
	if b.Status.Terminal() && (b.ProcessorID == "" || b.ProcessedAt == nil) {
		return fmt.Errorf("booking %s: %s without processor", b.ID, b.Status)
	}
	return nil
}

func todayIn(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(dateLayout)
}
