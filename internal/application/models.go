package application

import (
	"time"

	"github.com/example/booking-manager/internal/permission"
)

// User represents a registered staff or administrator account.
type User struct {
	ID                   string
	Email                string
	DisplayName          string
	Role                 permission.Role
	Tier                 permission.Tier
	Active               bool
	NotificationsEnabled bool
	LastSeenAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// UserCredentials pairs a user with the stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an issued login session for a registered actor.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// BookingKind distinguishes table reservations from events.
type BookingKind string

const (
	BookingKindStandard BookingKind = "STANDARD"
	BookingKindEvent    BookingKind = "EVENT"
)

// Valid reports whether k is a known booking kind.
func (k BookingKind) Valid() bool {
	return k == BookingKindStandard || k == BookingKindEvent
}

// BookingStatus is the booking state machine position.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusRejected  BookingStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusConfirmed || s == BookingStatusRejected
}

// Room enumerates the bookable areas of the restaurant.
type Room string

const (
	RoomBar           Room = "BAR"
	RoomBarReserved   Room = "BAR_RESERVED"
	RoomGlass         Room = "GLASS"
	RoomGlassReserved Room = "GLASS_RESERVED"
	RoomOutdoor       Room = "OUTDOOR"
	RoomPool          Room = "POOL"
	RoomTooCool       Room = "TOOCOOL"
)

// Rooms lists every known room in display order.
var Rooms = []Room{RoomBar, RoomBarReserved, RoomGlass, RoomGlassReserved, RoomOutdoor, RoomPool, RoomTooCool}

// Valid reports whether r is a known room.
func (r Room) Valid() bool {
	for _, room := range Rooms {
		if room == r {
			return true
		}
	}
	return false
}

// Attachment references a file stored outside the booking core.
type Attachment struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Booking is a single reservation of either kind.
type Booking struct {
	ID              string
	Kind            BookingKind
	CustomerName    string
	CustomerSurname string
	EventName       string
	Phone           string
	ReservationDate string
	ArrivalTime     string
	Room            Room
	Adults          int
	Teens           int
	Children        int
	Infants         int
	Participants    int
	MenuType        string
	Allergies       string
	PackageLabel    string
	Notes           string
	RejectionReason string
	Attachments     []Attachment
	Status          BookingStatus
	CreatorID       string
	ProcessorID     string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Revision is the stored version this value was read at. Writes carry it
	// back so the store can refuse them once another write got in first.
	Revision int64
}

// Headcount returns the number of guests the booking represents.
func (b Booking) Headcount() int {
	if b.Kind == BookingKindEvent {
		return b.Participants
	}
	return b.Adults + b.Teens + b.Children + b.Infants
}

// DisplayName returns the label shown in lists and notifications.
func (b Booking) DisplayName() string {
	if b.Kind == BookingKindEvent && b.EventName != "" {
		return b.EventName
	}
	if b.CustomerSurname == "" {
		return b.CustomerName
	}
	return b.CustomerName + " " + b.CustomerSurname
}

// BookingInput captures caller provided booking fields for creation and sync.
type BookingInput struct {
	Kind            BookingKind
	CustomerName    string
	CustomerSurname string
	EventName       string
	Phone           string
	ReservationDate string
	ArrivalTime     string
	Room            Room
	Adults          int
	Teens           int
	Children        int
	Infants         int
	Participants    int
	MenuType        string
	Allergies       string
	PackageLabel    string
	Notes           string
}

// BookingPatch carries a partial update; nil fields are left untouched.
// Status is deliberately absent.
type BookingPatch struct {
	CustomerName    *string
	CustomerSurname *string
	EventName       *string
	Phone           *string
	ReservationDate *string
	ArrivalTime     *string
	Room            *Room
	Adults          *int
	Teens           *int
	Children        *int
	Infants         *int
	Participants    *int
	MenuType        *string
	Allergies       *string
	PackageLabel    *string
	Notes           *string
}

// IsEmpty reports whether the patch changes nothing.
func (p BookingPatch) IsEmpty() bool {
	return p == BookingPatch{}
}

// RequestMode selects the visibility scope of a booking query.
type RequestMode string

const (
	// RequestModePersonal scopes non-manager actors to their own bookings.
	RequestModePersonal RequestMode = "PERSONAL"
	// RequestModeSharedView returns the whole shared pool (calendar and sync).
	RequestModeSharedView RequestMode = "SHARED_VIEW"
)

// BookingFilter narrows booking listings.
type BookingFilter struct {
	Statuses  []BookingStatus
	Kind      BookingKind
	Room      Room
	DateFrom  string
	DateTo    string
	Search    string
	CreatorID string
	Page      int
	Limit     int
}

// BookingPage is a paginated booking listing.
type BookingPage struct {
	Bookings []Booking
	Total    int
	Page     int
	Limit    int
}

// BookingQuery is the repository level query after visibility has been applied.
// A non-positive Limit returns every match.
type BookingQuery struct {
	Statuses      []BookingStatus
	Kind          BookingKind
	Room          Room
	DateFrom      string
	DateTo        string
	Search        string
	CreatorID     string
	CreatedBefore *time.Time
	Offset        int
	Limit         int
}

// BookingStats aggregates a set of bookings.
type BookingStats struct {
	Total     int
	Headcount int
	ByStatus  map[BookingStatus]int
	ByKind    map[BookingKind]int
	ByRoom    map[Room]int
}

// AccountOverview pairs an account with a summary of the bookings it created.
type AccountOverview struct {
	User           User
	Bookings       BookingStats
	RecentBookings []Booking
}

// UpdateProfileParams carries the self service fields of an account. Nil
// fields are left untouched.
type UpdateProfileParams struct {
	Actor                Actor
	DisplayName          *string
	NotificationsEnabled *bool
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Actor Actor
	Input BookingInput
}

// UpdateBookingParams wraps a field patch for an existing booking.
type UpdateBookingParams struct {
	Actor     Actor
	BookingID string
	Patch     BookingPatch
}

// SetStatusParams wraps a status decision.
type SetStatusParams struct {
	Actor           Actor
	BookingID       string
	Status          BookingStatus
	RejectionReason string
}

// ListBookingsParams wraps a listing request.
type ListBookingsParams struct {
	Actor  Actor
	Mode   RequestMode
	Filter BookingFilter
}

// AddAttachmentParams wraps an attachment registration.
type AddAttachmentParams struct {
	Actor      Actor
	BookingID  string
	Attachment Attachment
}

// BookingSnapshot is a client held copy of a booking submitted through sync.
type BookingSnapshot struct {
	ID         string
	Input      BookingInput
	ModifiedAt time.Time
}

// PushFailure describes a snapshot that could not be applied.
type PushFailure struct {
	BookingID string
	Kind      string
	Message   string
}

// PushResult summarises a sync push. Skipped counts snapshots that were not
// newer than the stored record.
type PushResult struct {
	Created  int
	Updated  int
	Skipped  int
	Errors   int
	Failures []PushFailure
}

// SyncSnapshot is the canonical booking set returned by a pull.
type SyncSnapshot struct {
	Bookings    []Booking
	Version     string
	GeneratedAt time.Time
}

// NotificationCategory classifies notifications.
type NotificationCategory string

const (
	NotificationNewBooking       NotificationCategory = "NEW_BOOKING"
	NotificationBookingModified  NotificationCategory = "BOOKING_MODIFIED"
	NotificationStatusChanged    NotificationCategory = "STATUS_CHANGED"
	NotificationBookingCancelled NotificationCategory = "CANCELLED"
	NotificationReminder         NotificationCategory = "REMINDER"
	NotificationSystem           NotificationCategory = "SYSTEM"
)

// NotificationPriority orders notifications by urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityMedium NotificationPriority = "MEDIUM"
	PriorityHigh   NotificationPriority = "HIGH"
	PriorityUrgent NotificationPriority = "URGENT"
)

// Dispatch is a notification addressed to one or more actors.
type Dispatch struct {
	Recipients []string
	Category   NotificationCategory
	Priority   NotificationPriority
	Title      string
	Message    string
	BookingID  string
	Status     BookingStatus
	CreatedAt  time.Time
}

// Notification is a persisted inbox entry for a single recipient.
type Notification struct {
	ID        string
	UserID    string
	Category  NotificationCategory
	Priority  NotificationPriority
	Title     string
	Message   string
	BookingID string
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// AuditAction names an audited operation.
type AuditAction string

const (
	AuditCreate       AuditAction = "CREATE"
	AuditUpdate       AuditAction = "UPDATE"
	AuditDelete       AuditAction = "DELETE"
	AuditStatusChange AuditAction = "STATUS_CHANGE"
	AuditLogin        AuditAction = "LOGIN"
	AuditLogout       AuditAction = "LOGOUT"
	AuditSyncPush     AuditAction = "SYNC_PUSH"
)

// AuditEntry records who did what to which entity.
type AuditEntry struct {
	ID         string
	ActorID    string
	ActorKind  ActorKind
	Action     AuditAction
	EntityType string
	EntityID   string
	Details    map[string]string
	CreatedAt  time.Time
}

// AuditQuery narrows audit listings.
type AuditQuery struct {
	ActorID    string
	Action     AuditAction
	EntityType string
	Since      *time.Time
	Limit      int
}
