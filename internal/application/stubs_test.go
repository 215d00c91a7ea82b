package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/booking-manager/internal/permission"
)

// bookingRepositoryStub is an in-memory BookingRepository for tests.
type bookingRepositoryStub struct {
	mu        sync.Mutex
	bookings  map[string]Booking
	queries   []BookingQuery
	createErr error
	updateErr error
	deleteErr error
	listErr   error
	getErr    map[string]error
	updates   int
	conflicts int
	// onRead runs after a successful GetBooking, outside the lock, before
	// the caller receives the value. Tests use it to land a competing write.
	onRead func(id string)
}

func newBookingRepositoryStub(seed ...Booking) *bookingRepositoryStub {
	repo := &bookingRepositoryStub{bookings: make(map[string]Booking), getErr: make(map[string]error)}
	for _, b := range seed {
		repo.bookings[b.ID] = b
	}
	return repo
}

func (r *bookingRepositoryStub) CreateBooking(_ context.Context, booking Booking) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Booking{}, r.createErr
	}
	if _, exists := r.bookings[booking.ID]; exists {
		return Booking{}, ErrAlreadyExists
	}
	booking.Revision = 1
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *bookingRepositoryStub) GetBooking(_ context.Context, id string) (Booking, error) {
	r.mu.Lock()
	if err := r.getErr[id]; err != nil {
		r.mu.Unlock()
		return Booking{}, err
	}
	b, ok := r.bookings[id]
	hook := r.onRead
	r.mu.Unlock()
	if !ok {
		return Booking{}, ErrNotFound
	}
	if hook != nil {
		hook(id)
	}
	return b, nil
}

func (r *bookingRepositoryStub) UpdateBooking(_ context.Context, booking Booking) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Booking{}, r.updateErr
	}
	stored, ok := r.bookings[booking.ID]
	if !ok {
		return Booking{}, ErrNotFound
	}
	if stored.Revision != booking.Revision {
		r.conflicts++
		return Booking{}, ErrConflict
	}
	booking.Revision++
	r.bookings[booking.ID] = booking
	r.updates++
	return booking, nil
}

func (r *bookingRepositoryStub) DeleteBooking(_ context.Context, id string, revision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	stored, ok := r.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if stored.Revision != revision {
		r.conflicts++
		return ErrConflict
	}
	delete(r.bookings, id)
	return nil
}

func (r *bookingRepositoryStub) ListBookings(_ context.Context, query BookingQuery) ([]Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.listErr != nil {
		return nil, 0, r.listErr
	}

	var out []Booking
	for _, b := range r.bookings {
		if len(query.Statuses) > 0 {
			match := false
			for _, status := range query.Statuses {
				if b.Status == status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if query.CreatorID != "" && b.CreatorID != query.CreatorID {
			continue
		}
		if query.Kind != "" && b.Kind != query.Kind {
			continue
		}
		if query.Room != "" && b.Room != query.Room {
			continue
		}
		if query.DateFrom != "" && b.ReservationDate < query.DateFrom {
			continue
		}
		if query.DateTo != "" && b.ReservationDate > query.DateTo {
			continue
		}
		if query.CreatedBefore != nil && b.CreatedAt.After(*query.CreatedBefore) {
			continue
		}
		if query.Search != "" && !strings.Contains(strings.ToLower(b.CustomerName+" "+b.CustomerSurname+" "+b.EventName+" "+b.Phone), strings.ToLower(query.Search)) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservationDate != out[j].ReservationDate {
			return out[i].ReservationDate > out[j].ReservationDate
		}
		if out[i].ArrivalTime != out[j].ArrivalTime {
			return out[i].ArrivalTime > out[j].ArrivalTime
		}
		return out[i].ID < out[j].ID
	})
	total := len(out)
	if query.Offset > 0 {
		if query.Offset >= len(out) {
			out = nil
		} else {
			out = out[query.Offset:]
		}
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, total, nil
}

// interleaveOnce arranges for write to run right after the next read of id,
// as if another request had committed while the caller was deciding.
func (r *bookingRepositoryStub) interleaveOnce(id string, write func()) {
	var once sync.Once
	r.mu.Lock()
	r.onRead = func(readID string) {
		if readID != id {
			return
		}
		once.Do(func() {
			r.mu.Lock()
			r.onRead = nil
			r.mu.Unlock()
			write()
		})
	}
	r.mu.Unlock()
}

func (r *bookingRepositoryStub) conflictCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts
}

func (r *bookingRepositoryStub) get(id string) (Booking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	return b, ok
}

// userDirectoryStub implements UserDirectory and the account stores.
type userDirectoryStub struct {
	mu      sync.Mutex
	users   map[string]User
	hashes  map[string]string
	listErr error
	created []UserCredentials
}

func newUserDirectoryStub(users ...User) *userDirectoryStub {
	dir := &userDirectoryStub{users: make(map[string]User), hashes: make(map[string]string)}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	return dir
}

func (d *userDirectoryStub) ListUsers(context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *userDirectoryStub) GetUser(_ context.Context, id string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (d *userDirectoryStub) UpdateUser(_ context.Context, user User) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	d.users[user.ID] = user
	return user, nil
}

func (d *userDirectoryStub) CreateUser(_ context.Context, creds UserCredentials) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, creds.User.Email) {
			return User{}, ErrAlreadyExists
		}
	}
	d.users[creds.User.ID] = creds.User
	d.hashes[creds.User.ID] = creds.PasswordHash
	d.created = append(d.created, creds)
	return creds.User, nil
}

func (d *userDirectoryStub) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[userID]; !ok {
		return ErrNotFound
	}
	d.hashes[userID] = hash
	return nil
}

func (d *userDirectoryStub) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return UserCredentials{User: u, PasswordHash: d.hashes[u.ID]}, nil
		}
	}
	return UserCredentials{}, ErrNotFound
}

// notifierRecorder captures dispatches synchronously.
type notifierRecorder struct {
	mu         sync.Mutex
	dispatches []Dispatch
}

func (n *notifierRecorder) Notify(_ context.Context, dispatch Dispatch) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatches = append(n.dispatches, dispatch)
}

func (n *notifierRecorder) all() []Dispatch {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Dispatch, len(n.dispatches))
	copy(out, n.dispatches)
	return out
}

// auditRecorderStub captures audit entries.
type auditRecorderStub struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *auditRecorderStub) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditRecorderStub) actions() []AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type invalidatorStub struct {
	mu    sync.Mutex
	calls int
}

func (i *invalidatorStub) Invalidate(context.Context) {
	i.mu.Lock()
	i.calls++
	i.mu.Unlock()
}

func (i *invalidatorStub) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func staffUser(id string, tier permission.Tier) User {
	return User{
		ID:                   id,
		Email:                id + "@example.com",
		DisplayName:          strings.ToUpper(id[:1]) + id[1:],
		Role:                 permission.RoleStaff,
		Tier:                 tier,
		Active:               true,
		NotificationsEnabled: true,
	}
}

func adminUser(id string) User {
	u := staffUser(id, permission.TierAdministrator)
	u.Role = permission.RoleAdmin
	return u
}

func actorFor(user User) Actor {
	return NewRegisteredActor(user)
}

func standardInput(date, at string) BookingInput {
	return BookingInput{
		Kind:            BookingKindStandard,
		CustomerName:    "Mario",
		CustomerSurname: "Rossi",
		Phone:           "+39 333 1234567",
		ReservationDate: date,
		ArrivalTime:     at,
		Room:            RoomGlass,
		Adults:          4,
	}
}

func eventInput(date string) BookingInput {
	return BookingInput{
		Kind:            BookingKindEvent,
		EventName:       "Cena aziendale",
		Phone:           "0521 123456",
		ReservationDate: date,
		ArrivalTime:     "20:00",
		Room:            RoomPool,
		Participants:    40,
		MenuType:        "Menu degustazione",
		PackageLabel:    "Gold",
	}
}
