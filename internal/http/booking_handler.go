package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/booking-manager/internal/application"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	GetBooking(ctx context.Context, actor application.Actor, id string, mode application.RequestMode) (application.Booking, error)
	UpdateBookingFields(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	SetBookingStatus(ctx context.Context, params application.SetStatusParams) (application.Booking, error)
	DeleteBooking(ctx context.Context, actor application.Actor, id string) error
	AddAttachment(ctx context.Context, params application.AddAttachmentParams) (application.Booking, error)
	RemoveAttachment(ctx context.Context, actor application.Actor, bookingID, filename string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) (application.BookingPage, error)
	ListMyBookings(ctx context.Context, actor application.Actor, filter application.BookingFilter) (application.BookingPage, error)
	Stats(ctx context.Context, actor application.Actor, filter application.BookingFilter) (application.BookingStats, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: service, responder: newResponder(logger)}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Actor: actor,
		Input: req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingDTO(booking))
}

// Get serves GET /bookings/:id. The "mine" segment is routed here because the
// router cannot mix a static segment with a parameter at the same position.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := pathParam(r.Context(), "id")
	if id == "mine" {
		h.ListMine(w, r)
		return
	}

	mode := application.RequestModePersonal
	if r.URL.Query().Get("view") == "calendar" {
		mode = application.RequestModeSharedView
	}

	actor, _ := ActorFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), actor, id, mode)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingPatchRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	booking, err := h.service.UpdateBookingFields(r.Context(), application.UpdateBookingParams{
		Actor:     actor,
		BookingID: pathParam(r.Context(), "id"),
		Patch:     req.toPatch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req statusRequest
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	booking, err := h.service.SetBookingStatus(r.Context(), application.SetStatusParams{
		Actor:           actor,
		BookingID:       pathParam(r.Context(), "id"),
		Status:          application.BookingStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		RejectionReason: strings.TrimSpace(req.RejectionReason),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	if err := h.service.DeleteBooking(r.Context(), actor, pathParam(r.Context(), "id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req application.Attachment
	if !h.responder.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	req.UploadedAt = time.Time{}

	actor, _ := ActorFromContext(r.Context())
	booking, err := h.service.AddAttachment(r.Context(), application.AddAttachmentParams{
		Actor:      actor,
		BookingID:  pathParam(r.Context(), "id"),
		Attachment: req,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingDTO(booking))
}

func (h *BookingHandler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	booking, err := h.service.RemoveAttachment(r.Context(), actor, pathParam(r.Context(), "id"), pathParam(r.Context(), "filename"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

// List serves the personal listing: everything for managers, own bookings
// for everyone else.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, application.RequestModePersonal)
}

// Calendar serves the shared pool every actor may browse.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, application.RequestModeSharedView)
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, mode application.RequestMode) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := parseBookingFilter(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	page, err := h.service.ListBookings(r.Context(), application.ListBookingsParams{Actor: actor, Mode: mode, Filter: filter})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingPageDTO(page))
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := parseBookingFilter(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	page, err := h.service.ListMyBookings(r.Context(), actor, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingPageDTO(page))
}

// Stats serves GET /stats. It accepts the listing filters; paging is ignored.
func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := parseBookingFilter(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), actor, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingStatsDTO(stats))
}

// parseBookingFilter reads the listing query string. Malformed numbers are
// reported as validation errors.
func parseBookingFilter(values url.Values) (application.BookingFilter, error) {
	filter := application.BookingFilter{
		Kind:      application.BookingKind(strings.ToUpper(strings.TrimSpace(values.Get("kind")))),
		Room:      application.Room(strings.ToUpper(strings.TrimSpace(values.Get("room")))),
		DateFrom:  strings.TrimSpace(values.Get("date_from")),
		DateTo:    strings.TrimSpace(values.Get("date_to")),
		Search:    strings.TrimSpace(values.Get("search")),
		CreatorID: strings.TrimSpace(values.Get("creator_id")),
	}
	for _, status := range parseCSV(values.Get("status")) {
		filter.Statuses = append(filter.Statuses, application.BookingStatus(strings.ToUpper(status)))
	}

	fieldErrors := map[string]string{}
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fieldErrors["page"] = "Pagina non valida"
		}
		filter.Page = n
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fieldErrors["limit"] = "Limite non valido"
		}
		filter.Limit = n
	}
	if len(fieldErrors) > 0 {
		return application.BookingFilter{}, &application.ValidationError{FieldErrors: fieldErrors}
	}
	return filter, nil
}

func parseCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type bookingRequest struct {
	Kind            string `json:"kind"`
	CustomerName    string `json:"customer_name"`
	CustomerSurname string `json:"customer_surname"`
	EventName       string `json:"event_name"`
	Phone           string `json:"phone"`
	ReservationDate string `json:"reservation_date"`
	ArrivalTime     string `json:"arrival_time"`
	Room            string `json:"room"`
	Adults          int    `json:"adults"`
	Teens           int    `json:"teens"`
	Children        int    `json:"children"`
	Infants         int    `json:"infants"`
	Participants    int    `json:"participants"`
	MenuType        string `json:"menu_type"`
	Allergies       string `json:"allergies"`
	PackageLabel    string `json:"package_label"`
	Notes           string `json:"notes"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		Kind:            application.BookingKind(r.Kind),
		CustomerName:    r.CustomerName,
		CustomerSurname: r.CustomerSurname,
		EventName:       r.EventName,
		Phone:           r.Phone,
		ReservationDate: r.ReservationDate,
		ArrivalTime:     r.ArrivalTime,
		Room:            application.Room(r.Room),
		Adults:          r.Adults,
		Teens:           r.Teens,
		Children:        r.Children,
		Infants:         r.Infants,
		Participants:    r.Participants,
		MenuType:        r.MenuType,
		Allergies:       r.Allergies,
		PackageLabel:    r.PackageLabel,
		Notes:           r.Notes,
	}
}

type bookingPatchRequest struct {
	CustomerName    *string `json:"customer_name"`
	CustomerSurname *string `json:"customer_surname"`
	EventName       *string `json:"event_name"`
	Phone           *string `json:"phone"`
	ReservationDate *string `json:"reservation_date"`
	ArrivalTime     *string `json:"arrival_time"`
	Room            *string `json:"room"`
	Adults          *int    `json:"adults"`
	Teens           *int    `json:"teens"`
	Children        *int    `json:"children"`
	Infants         *int    `json:"infants"`
	Participants    *int    `json:"participants"`
	MenuType        *string `json:"menu_type"`
	Allergies       *string `json:"allergies"`
	PackageLabel    *string `json:"package_label"`
	Notes           *string `json:"notes"`
}

func (r bookingPatchRequest) toPatch() application.BookingPatch {
	patch := application.BookingPatch{
		CustomerName:    r.CustomerName,
		CustomerSurname: r.CustomerSurname,
		EventName:       r.EventName,
		Phone:           r.Phone,
		ReservationDate: r.ReservationDate,
		ArrivalTime:     r.ArrivalTime,
		Adults:          r.Adults,
		Teens:           r.Teens,
		Children:        r.Children,
		Infants:         r.Infants,
		Participants:    r.Participants,
		MenuType:        r.MenuType,
		Allergies:       r.Allergies,
		PackageLabel:    r.PackageLabel,
		Notes:           r.Notes,
	}
	if r.Room != nil {
		room := application.Room(*r.Room)
		patch.Room = &room
	}
	return patch
}

type statusRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}

type bookingDTO struct {
	ID              string                   `json:"id"`
	Kind            string                   `json:"kind"`
	DisplayName     string                   `json:"display_name"`
	CustomerName    string                   `json:"customer_name,omitempty"`
	CustomerSurname string                   `json:"customer_surname,omitempty"`
	EventName       string                   `json:"event_name,omitempty"`
	Phone           string                   `json:"phone"`
	ReservationDate string                   `json:"reservation_date"`
	ArrivalTime     string                   `json:"arrival_time"`
	Room            string                   `json:"room,omitempty"`
	Adults          int                      `json:"adults"`
	Teens           int                      `json:"teens"`
	Children        int                      `json:"children"`
	Infants         int                      `json:"infants"`
	Participants    int                      `json:"participants"`
	Headcount       int                      `json:"headcount"`
	MenuType        string                   `json:"menu_type,omitempty"`
	Allergies       string                   `json:"allergies,omitempty"`
	PackageLabel    string                   `json:"package_label,omitempty"`
	Notes           string                   `json:"notes,omitempty"`
	RejectionReason string                   `json:"rejection_reason,omitempty"`
	Attachments     []application.Attachment `json:"attachments"`
	Status          string                   `json:"status"`
	CreatorID       string                   `json:"creator_id"`
	ProcessorID     string                   `json:"processor_id,omitempty"`
	ProcessedAt     *time.Time               `json:"processed_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func toBookingDTO(b application.Booking) bookingDTO {
	attachments := b.Attachments
	if attachments == nil {
		attachments = []application.Attachment{}
	}
	return bookingDTO{
		ID:              b.ID,
		Kind:            string(b.Kind),
		DisplayName:     b.DisplayName(),
		CustomerName:    b.CustomerName,
		CustomerSurname: b.CustomerSurname,
		EventName:       b.EventName,
		Phone:           b.Phone,
		ReservationDate: b.ReservationDate,
		ArrivalTime:     b.ArrivalTime,
		Room:            string(b.Room),
		Adults:          b.Adults,
		Teens:           b.Teens,
		Children:        b.Children,
		Infants:         b.Infants,
		Participants:    b.Participants,
		Headcount:       b.Headcount(),
		MenuType:        b.MenuType,
		Allergies:       b.Allergies,
		PackageLabel:    b.PackageLabel,
		Notes:           b.Notes,
		RejectionReason: b.RejectionReason,
		Attachments:     attachments,
		Status:          string(b.Status),
		CreatorID:       b.CreatorID,
		ProcessorID:     b.ProcessorID,
		ProcessedAt:     b.ProcessedAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}

type bookingPageDTO struct {
	Bookings []bookingDTO `json:"bookings"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}

func toBookingPageDTO(page application.BookingPage) bookingPageDTO {
	return bookingPageDTO{
		Bookings: toBookingDTOs(page.Bookings),
		Total:    page.Total,
		Page:     page.Page,
		Limit:    page.Limit,
	}
}

type bookingStatsDTO struct {
	Total     int            `json:"total"`
	Headcount int            `json:"headcount"`
	ByStatus  map[string]int `json:"by_status"`
	ByKind    map[string]int `json:"by_kind"`
	ByRoom    map[string]int `json:"by_room"`
}

func toBookingStatsDTO(stats application.BookingStats) bookingStatsDTO {
	out := bookingStatsDTO{
		Total:     stats.Total,
		Headcount: stats.Headcount,
		ByStatus:  make(map[string]int, len(stats.ByStatus)),
		ByKind:    make(map[string]int, len(stats.ByKind)),
		ByRoom:    make(map[string]int, len(stats.ByRoom)),
	}
	for status, n := range stats.ByStatus {
		out.ByStatus[string(status)] = n
	}
	for kind, n := range stats.ByKind {
		out.ByKind[string(kind)] = n
	}
	for room, n := range stats.ByRoom {
		out.ByRoom[string(room)] = n
	}
	return out
}
