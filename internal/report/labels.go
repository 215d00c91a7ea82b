// Package report renders booking exports (CSV and PDF) and the printable
// access card handed to shared terminals.
package report

import (
	"strconv"

	"github.com/example/booking-manager/internal/application"
)

var statusLabels = map[application.BookingStatus]string{
	application.BookingStatusPending:   "In attesa",
	application.BookingStatusConfirmed: "Confermata",
	application.BookingStatusRejected:  "Rifiutata",
}

var kindLabels = map[application.BookingKind]string{
	application.BookingKindStandard: "Standard",
	application.BookingKindEvent:    "Evento",
}

func statusLabel(status application.BookingStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

func kindLabel(kind application.BookingKind) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return string(kind)
}

// row flattens a booking into the export columns shared by CSV and PDF.
func row(b application.Booking, creators map[string]string) []string {
	creator := b.CreatorID
	if name, ok := creators[b.CreatorID]; ok && name != "" {
		creator = name
	}
	return []string{
		b.ReservationDate,
		b.ArrivalTime,
		kindLabel(b.Kind),
		b.DisplayName(),
		b.Phone,
		string(b.Room),
		strconv.Itoa(b.Headcount()),
		statusLabel(b.Status),
		creator,
		b.Notes,
	}
}

var header = []string{"Data", "Ora", "Tipo", "Cliente / Evento", "Telefono", "Sala", "Persone", "Stato", "Inserita da", "Note"}
