package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/permission"
)

var (
	userCounter    uint64
	bookingCounter uint64
)

var referenceTime = time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DefaultPassword is the clear text password of seeded users.
const DefaultPassword = "password-sala-1"

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic registered account.
type UserFixture struct {
	ID          string
	Email       string
	DisplayName string
	Password    string
	Role        permission.Role
	Tier        permission.Tier
	Active      bool
	CreatedAt   time.Time
}

// UserOption configures a UserFixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an active BASE staff account with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:          id,
		Email:       id + "@ristorante.example.com",
		DisplayName: fmt.Sprintf("Operatore %03d", idx),
		Password:    DefaultPassword,
		Role:        permission.RoleStaff,
		Tier:        permission.TierBase,
		Active:      true,
		CreatedAt:   referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated id.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserName overrides the display name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}

// WithTier sets the permission tier of a staff account.
func WithTier(tier permission.Tier) UserOption {
	return func(f *UserFixture) { f.Tier = tier }
}

// AsAdmin turns the fixture into an ADMIN account.
func AsAdmin() UserOption {
	return func(f *UserFixture) {
		f.Role = permission.RoleAdmin
		f.Tier = permission.TierAdministrator
	}
}

// Inactive marks the account as disabled.
func Inactive() UserOption {
	return func(f *UserFixture) { f.Active = false }
}

// User returns the fixture as an application.User.
func (f UserFixture) User() application.User {
	return application.User{
		ID:                   f.ID,
		Email:                f.Email,
		DisplayName:          f.DisplayName,
		Role:                 f.Role,
		Tier:                 f.Tier,
		Active:               f.Active,
		NotificationsEnabled: true,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.CreatedAt,
	}
}

// Actor returns the registered actor the account resolves to.
func (f UserFixture) Actor() application.Actor {
	return application.NewRegisteredActor(f.User())
}

// SharedActor returns a shared direct access actor with the given tier.
func SharedActor(name string, tier permission.Tier, expires time.Time) application.Actor {
	return application.NewSharedActor(application.SharedClaims{
		ActorID:     "shared-" + name,
		DisplayName: name,
		Role:        permission.RoleStaff,
		Tier:        tier,
		IssuedAt:    expires.Add(-application.DefaultSharedTokenTTL),
		Expiry:      expires,
	})
}

// --------------------------- Booking fixtures ----------------------------

// BookingOption configures a booking input.
type BookingOption func(*application.BookingInput)

// NewBookingInput returns a valid STANDARD booking for date.
func NewBookingInput(date string, opts ...BookingOption) application.BookingInput {
	idx := atomic.AddUint64(&bookingCounter, 1)
	input := application.BookingInput{
		Kind:            application.BookingKindStandard,
		CustomerName:    "Cliente",
		CustomerSurname: fmt.Sprintf("Numero%03d", idx),
		Phone:           "+39 333 1234567",
		ReservationDate: date,
		ArrivalTime:     "20:00",
		Room:            application.RoomGlass,
		Adults:          2,
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// NewEventInput returns a valid EVENT booking for date.
func NewEventInput(date string, opts ...BookingOption) application.BookingInput {
	idx := atomic.AddUint64(&bookingCounter, 1)
	input := application.BookingInput{
		Kind:            application.BookingKindEvent,
		EventName:       fmt.Sprintf("Evento %03d", idx),
		Phone:           "+39 333 7654321",
		ReservationDate: date,
		ArrivalTime:     "19:30",
		Room:            application.RoomTooCool,
		Participants:    30,
		MenuType:        "Menu degustazione",
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// WithCustomer sets the customer name and surname.
func WithCustomer(name, surname string) BookingOption {
	return func(in *application.BookingInput) {
		in.CustomerName = name
		in.CustomerSurname = surname
	}
}

// WithRoom sets the room.
func WithRoom(room application.Room) BookingOption {
	return func(in *application.BookingInput) { in.Room = room }
}

// WithArrival sets the arrival time.
func WithArrival(at string) BookingOption {
	return func(in *application.BookingInput) { in.ArrivalTime = at }
}

// WithNotes sets the free text notes.
func WithNotes(notes string) BookingOption {
	return func(in *application.BookingInput) { in.Notes = notes }
}
