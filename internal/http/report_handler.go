package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/report"
)

type bookingLister interface {
	ListBookings(ctx context.Context, params application.ListBookingsParams) (application.BookingPage, error)
	ListMyBookings(ctx context.Context, actor application.Actor, filter application.BookingFilter) (application.BookingPage, error)
}

// pageFunc loads one page of an export.
type pageFunc func(ctx context.Context, actor application.Actor, filter application.BookingFilter) (application.BookingPage, error)

type userDirectory interface {
	ListUsers(ctx context.Context) ([]application.User, error)
}

type ReportHandler struct {
	bookings  bookingLister
	users     userDirectory
	now       func() time.Time
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewReportHandler builds the export endpoints. Timestamps printed on the
// PDF use location.
func NewReportHandler(bookings bookingLister, users userDirectory, now func() time.Time, location *time.Location, logger *slog.Logger) *ReportHandler {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	base := defaultLogger(logger)
	return &ReportHandler{
		bookings:  bookings,
		users:     users,
		now:       now,
		location:  location,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *ReportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.allBookings, "prenotazioni.csv", csvRenderer)
}

func (h *ReportHandler) PDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.allBookings, "prenotazioni.pdf", h.pdfRenderer("Prenotazioni"))
}

// MyCSV exports the acting account's own booking history.
func (h *ReportHandler) MyCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.ownBookings, "cronologia.csv", csvRenderer)
}

// MyPDF exports the acting account's own booking history.
func (h *ReportHandler) MyPDF(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	h.export(w, r, h.ownBookings, "cronologia.pdf", h.pdfRenderer("Cronologia di "+actor.DisplayName))
}

type renderer struct {
	contentType string
	render      func(*bytes.Buffer, []application.Booking, map[string]string) error
}

var csvRenderer = renderer{
	contentType: "text/csv; charset=utf-8",
	render: func(buf *bytes.Buffer, bookings []application.Booking, creators map[string]string) error {
		return report.WriteCSV(buf, bookings, creators)
	},
}

func (h *ReportHandler) pdfRenderer(title string) renderer {
	return renderer{
		contentType: "application/pdf",
		render: func(buf *bytes.Buffer, bookings []application.Booking, creators map[string]string) error {
			return report.WritePDF(buf, title, bookings, creators, h.now().In(h.location))
		},
	}
}

// allBookings backs the manager exports.
func (h *ReportHandler) allBookings(ctx context.Context, actor application.Actor, filter application.BookingFilter) (application.BookingPage, error) {
	if !actor.Capabilities().CanViewAllBookings {
		return application.BookingPage{}, application.ErrForbidden
	}
	return h.bookings.ListBookings(ctx, application.ListBookingsParams{Actor: actor, Mode: application.RequestModePersonal, Filter: filter})
}

func (h *ReportHandler) ownBookings(ctx context.Context, actor application.Actor, filter application.BookingFilter) (application.BookingPage, error) {
	if actor.IsShared() {
		return application.BookingPage{}, application.ErrForbidden
	}
	return h.bookings.ListMyBookings(ctx, actor, filter)
}

func (h *ReportHandler) export(w http.ResponseWriter, r *http.Request, list pageFunc, filename string, out renderer) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	filter, err := parseBookingFilter(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	bookings, err := collect(r.Context(), list, actor, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	creators, err := h.creatorNames(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := out.render(&buf, bookings, creators); err != nil {
		h.responder.handleServiceError(r.Context(), w, fmt.Errorf("render %s: %w", filename, err))
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "ReportHandler", "export", "file", filename, "count", len(bookings))
	w.Header().Set("Content-Type", out.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.WarnContext(r.Context(), "failed to write report", "error", err)
		return
	}
	logger.InfoContext(r.Context(), "report exported")
}

// collect walks every page of the filtered listing. An explicit page in the
// query exports that page only.
func collect(ctx context.Context, list pageFunc, actor application.Actor, filter application.BookingFilter) ([]application.Booking, error) {
	if filter.Page > 0 {
		page, err := list(ctx, actor, filter)
		if err != nil {
			return nil, err
		}
		return page.Bookings, nil
	}

	filter.Limit = application.MaxPageSize
	var out []application.Booking
	for page := 1; ; page++ {
		filter.Page = page
		result, err := list(ctx, actor, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, result.Bookings...)
		if len(result.Bookings) == 0 || len(out) >= result.Total {
			return out, nil
		}
	}
}

func (h *ReportHandler) creatorNames(ctx context.Context) (map[string]string, error) {
	names := map[string]string{}
	if h.users == nil {
		return names, nil
	}
	users, err := h.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		names[user.ID] = user.DisplayName
	}
	return names, nil
}
