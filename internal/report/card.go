package report

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// AccessCard describes the printable credential of a shared terminal.
type AccessCard struct {
	Token       string
	DisplayName string
	IssuedBy    string
	ExpiresAt   time.Time
	// LoginURL, when set, is encoded in the QR code with the token appended
	// as the "token" query parameter. Otherwise the bare token is encoded.
	LoginURL string
}

// QRPayload returns the text encoded in the card's QR code.
func (c AccessCard) QRPayload() (string, error) {
	if c.LoginURL == "" {
		return c.Token, nil
	}
	u, err := url.Parse(c.LoginURL)
	if err != nil {
		return "", fmt.Errorf("parse login url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WriteAccessCard renders a single page PDF with the QR code and the expiry.
func WriteAccessCard(w io.Writer, card AccessCard) error {
	if card.Token == "" {
		return fmt.Errorf("access card needs a token")
	}
	payload, err := card.QRPayload()
	if err != nil {
		return err
	}
	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 512)
	if err != nil {
		return fmt.Errorf("encode qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, tr("Accesso diretto al calendario"), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	if card.DisplayName != "" {
		pdf.CellFormat(0, 8, tr(card.DisplayName), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pageWidth, _ := pdf.GetPageSize()
	const size = 90.0
	pdf.ImageOptions("qr", (pageWidth-size)/2, pdf.GetY(), size, size, true, imageOpts, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("Scade il "+card.ExpiresAt.Format("02/01/2006 15:04")), "", 1, "C", false, 0, "")
	if card.IssuedBy != "" {
		pdf.CellFormat(0, 6, tr("Emesso da "+card.IssuedBy), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, tr("Chi possiede questa tessera può consultare il calendario senza credenziali personali. Conservarla con cura."), "", "C", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render access card: %w", err)
	}
	return nil
}
