package persistence

import "time"

// User represents a registered staff or admin account.
type User struct {
	ID                   string
	Email                string
	DisplayName          string
	PasswordHash         string
	Role                 string
	Tier                 string
	Active               bool
	NotificationsEnabled bool
	LastSeenAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Session represents an authentication session persisted for a user.
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

// Attachment is a file reference stored alongside a booking.
type Attachment struct {
	Filename     string    `json:"filename" bson:"filename"`
	OriginalName string    `json:"original_name" bson:"original_name"`
	MimeType     string    `json:"mime_type" bson:"mime_type"`
	Size         int64     `json:"size" bson:"size"`
	URL          string    `json:"url" bson:"url"`
	UploadedAt   time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

// Booking is the stored form of a reservation. Dates and times are kept as
// zero padded strings so that lexical order matches chronological order.
type Booking struct {
	ID              string
	Kind            string
	CustomerName    string
	CustomerSurname string
	EventName       string
	Phone           string
	ReservationDate string
	ArrivalTime     string
	Room            string
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
	Status          string
	CreatorID       string
	ProcessorID     string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Revision starts at 1 and grows by one with every stored write.
	Revision int64
}

// BookingFilter narrows booking queries. A non-positive Limit returns every match.
type BookingFilter struct {
	Statuses      []string
	Kind          string
	Room          string
	DateFrom      string
	DateTo        string
	Search        string
	CreatorID     string
	CreatedBefore *time.Time
	Offset        int
	Limit         int
}

// Notification is a per-recipient inbox row.
type Notification struct {
	ID        string
	UserID    string
	Category  string
	Priority  string
	Title     string
	Message   string
	BookingID string
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// AuditEntry records who did what to which entity.
type AuditEntry struct {
	ID         string
	ActorID    string
	ActorKind  string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]string
	CreatedAt  time.Time
}

// AuditFilter narrows audit listings. Entries are returned newest first.
type AuditFilter struct {
	ActorID    string
	Action     string
	EntityType string
	Since      *time.Time
	Limit      int
}
