package report

import (
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/example/booking-manager/internal/application"
)

var columnWidths = []float64{22, 13, 18, 48, 30, 30, 15, 22, 35, 44}

// WritePDF renders bookings as a landscape A4 table.
func WritePDF(w io.Writer, title string, bookings []application.Booking, creators map[string]string, generatedAt time.Time) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(title), false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Pagina %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(9)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Generato il %s - %d prenotazioni", generatedAt.Format("02/01/2006 15:04"), len(bookings))))
	pdf.Ln(10)

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, label := range header {
			pdf.CellFormat(columnWidths[i], 7, tr(label), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, b := range bookings {
		if pdf.GetY()+6 > pageHeight-bottom-10 {
			pdf.AddPage()
			writeHeader()
		}
		for i, value := range row(b, creators) {
			pdf.CellFormat(columnWidths[i], 6, tr(truncate(value, columnWidths[i])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// truncate keeps a cell on one line: the 8pt body font fits about one
// character per two millimetres.
func truncate(value string, width float64) string {
	limit := int(width * 0.55)
	runes := []rune(value)
	if len(runes) <= limit || limit < 4 {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
