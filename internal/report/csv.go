package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/example/booking-manager/internal/application"
)

// WriteCSV writes bookings with a header row. Semicolons separate fields so
// the file opens cleanly in spreadsheet software set to an Italian locale.
func WriteCSV(w io.Writer, bookings []application.Booking, creators map[string]string) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range bookings {
		if err := writer.Write(row(b, creators)); err != nil {
			return fmt.Errorf("write csv row %s: %w", b.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
