package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// recentBookingsLimit bounds the booking excerpt of an account overview.
const recentBookingsLimit = 5

// ProfileStore loads and saves the acting account.
type ProfileStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

// ProfileService serves the self service views of a registered account.
type ProfileService struct {
	users    ProfileStore
	bookings BookingRepository
	auditLog AuditReader
	audit    AuditRecorder
	now      func() time.Time
	logger   *slog.Logger
}

// NewProfileService wires the profile endpoints. bookings and auditLog may be
// nil, in which case the overview and activity feed come back empty.
func NewProfileService(users ProfileStore, bookings BookingRepository, auditLog AuditReader, audit AuditRecorder, now func() time.Time, logger *slog.Logger) *ProfileService {
	if now == nil {
		now = time.Now
	}
	return &ProfileService{
		users:    users,
		bookings: bookings,
		auditLog: auditLog,
		audit:    audit,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

func (s *ProfileService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ProfileService", operation, attrs...)
}

func registeredOnly(actor Actor) error {
	if actor.IsShared() || strings.TrimSpace(actor.ID) == "" || !actor.Active {
		return ErrForbidden
	}
	return nil
}

// GetProfile returns the acting account with a summary of its own bookings.
func (s *ProfileService) GetProfile(ctx context.Context, actor Actor) (AccountOverview, error) {
	if s == nil || s.users == nil {
		return AccountOverview{}, fmt.Errorf("ProfileService is not configured")
	}
	if err := registeredOnly(actor); err != nil {
		return AccountOverview{}, err
	}
	user, err := s.users.GetUser(ctx, actor.ID)
	if err != nil {
		return AccountOverview{}, err
	}
	return overviewFor(ctx, s.bookings, user)
}

// UpdateProfile changes the display name and notification preference.
func (s *ProfileService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("ProfileService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "actor_id", params.Actor.ID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "profile update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if err = registeredOnly(params.Actor); err != nil {
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.Actor.ID)
	if err != nil {
		return
	}

	details := map[string]string{}
	if params.DisplayName != nil {
		name := strings.TrimSpace(*params.DisplayName)
		if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
			err = newValidationError("display_name", "Nome deve essere tra 2 e 100 caratteri")
			return
		}
		if name != existing.DisplayName {
			existing.DisplayName = name
			details["display_name"] = name
		}
	}
	if params.NotificationsEnabled != nil && *params.NotificationsEnabled != existing.NotificationsEnabled {
		existing.NotificationsEnabled = *params.NotificationsEnabled
		details["notifications_enabled"] = fmt.Sprint(existing.NotificationsEnabled)
	}
	if len(details) == 0 {
		user = existing
		return
	}

	existing.UpdatedAt = s.now()
	user, err = s.users.UpdateUser(ctx, existing)
	if err != nil {
		return
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			ActorID:    params.Actor.ID,
			ActorKind:  params.Actor.Kind,
			Action:     AuditUpdate,
			EntityType: "user",
			EntityID:   user.ID,
			Details:    details,
			CreatedAt:  s.now(),
		})
	}
	return
}

// ListActivity returns the audit entries the acting account produced, newest
// first. The actor filter of query is always overridden.
func (s *ProfileService) ListActivity(ctx context.Context, actor Actor, query AuditQuery) ([]AuditEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("ProfileService is nil")
	}
	if err := registeredOnly(actor); err != nil {
		return nil, err
	}
	if s.auditLog == nil {
		return []AuditEntry{}, nil
	}
	query.ActorID = actor.ID
	if query.Limit <= 0 || query.Limit > MaxPageSize {
		query.Limit = defaultPageSize
	}
	return s.auditLog.ListAuditEntries(ctx, query)
}

// overviewFor summarises the bookings created by user. The excerpt lists the
// most recently created ones.
func overviewFor(ctx context.Context, bookings BookingRepository, user User) (AccountOverview, error) {
	overview := AccountOverview{User: user, Bookings: summarizeBookings(nil), RecentBookings: []Booking{}}
	if bookings == nil {
		return overview, nil
	}
	own, _, err := bookings.ListBookings(ctx, BookingQuery{CreatorID: user.ID})
	if err != nil {
		return AccountOverview{}, err
	}
	overview.Bookings = summarizeBookings(own)

	recent := append([]Booking(nil), own...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentBookingsLimit {
		recent = recent[:recentBookingsLimit]
	}
	overview.RecentBookings = recent
	return overview, nil
}
