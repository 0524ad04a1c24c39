package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/carsharing/backend/internal/domain"
)

// memDB is an in-memory stand-in for PostgreSQL. WithinTx serializes units of
// work and restores a snapshot when fn fails, which mirrors row locking plus
// rollback closely enough for the workflow rules under test.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	vehicles map[int64]domain.Vehicle
	rentals  map[int64]domain.Rental
	payments map[int64]domain.Payment
	users    map[string]domain.User
	nextID   int64

	failRentalCreate error
}

func newMemDB() *memDB {
	return &memDB{
		vehicles: make(map[int64]domain.Vehicle),
		rentals:  make(map[int64]domain.Rental),
		payments: make(map[int64]domain.Payment),
		users:    make(map[string]domain.User),
		nextID:   100,
	}
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	vehicles := cloneMap(db.vehicles)
	rentals := cloneMap(db.rentals)
	payments := cloneMap(db.payments)
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.vehicles, db.rentals, db.payments = vehicles, rentals, payments
		db.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addVehicle(v domain.Vehicle) *domain.Vehicle {
	db.mu.Lock()
	defer db.mu.Unlock()
	if v.ID == 0 {
		v.ID = db.id()
	}
	db.vehicles[v.ID] = v
	return &v
}

func (db *memDB) addUser(u domain.User) *domain.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u.ID == "" {
		u.ID = domain.NewUserID()
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	db.users[u.ID] = u
	return &u
}

func (db *memDB) addRental(r domain.Rental) *domain.Rental {
	db.mu.Lock()
	defer db.mu.Unlock()
	if r.ID == 0 {
		r.ID = db.id()
	}
	db.rentals[r.ID] = r
	return &r
}

func (db *memDB) addPayment(p domain.Payment) *domain.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == 0 {
		p.ID = db.id()
	}
	db.payments[p.ID] = p
	return &p
}

func (db *memDB) inventory(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.vehicles[id].Inventory
}

func (db *memDB) rentalCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.rentals)
}

// vehicles

type memVehicles struct{ db *memDB }

func (s memVehicles) Create(ctx context.Context, v *domain.Vehicle) error {
	created := s.db.addVehicle(*v)
	v.ID = created.ID
	return nil
}

func (s memVehicles) FindByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.vehicles[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s memVehicles) List(ctx context.Context, page domain.PageRequest) ([]*domain.Vehicle, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []*domain.Vehicle
	for _, v := range s.db.vehicles {
		v := v
		all = append(all, &v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func (s memVehicles) Update(ctx context.Context, v *domain.Vehicle) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.vehicles[v.ID]
	if !ok {
		return nil
	}
	stored.Model, stored.Brand, stored.Type, stored.DailyFee = v.Model, v.Brand, v.Type, v.DailyFee
	s.db.vehicles[v.ID] = stored
	return nil
}

func (s memVehicles) SoftDelete(ctx context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.vehicles[id]; !ok {
		return false, nil
	}
	delete(s.db.vehicles, id)
	return true, nil
}

func (s memVehicles) LockInventory(ctx context.Context, id int64) (int, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.vehicles[id]
	return v.Inventory, ok, nil
}

func (s memVehicles) AdjustInventory(ctx context.Context, id int64, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.vehicles[id]
	if !ok {
		return errors.New("car not found")
	}
	v.Inventory += delta
	if v.Inventory < 0 {
		return errors.New("inventory check constraint violated")
	}
	s.db.vehicles[id] = v
	return nil
}

// rentals

type memRentals struct{ db *memDB }

func (s memRentals) Create(ctx context.Context, r *domain.Rental) error {
	if s.db.failRentalCreate != nil {
		return s.db.failRentalCreate
	}
	created := s.db.addRental(*r)
	r.ID = created.ID
	return nil
}

func (s memRentals) FindByID(ctx context.Context, id int64) (*domain.Rental, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rentals[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s memRentals) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Rental, error) {
	return s.FindByID(ctx, id)
}

func (s memRentals) FindByUserAndID(ctx context.Context, userID string, id int64) (*domain.Rental, error) {
	r, _ := s.FindByID(ctx, id)
	if r == nil || r.UserID != userID {
		return nil, nil
	}
	return r, nil
}

func (s memRentals) ListByUser(ctx context.Context, userID string) ([]*domain.Rental, error) {
	return s.filter(func(r domain.Rental) bool { return r.UserID == userID }), nil
}

func (s memRentals) SetActualReturnDate(ctx context.Context, id int64, date time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r := s.db.rentals[id]
	r.ActualReturnDate = &date
	s.db.rentals[id] = r
	return nil
}

func (s memRentals) ListOverdue(ctx context.Context, today time.Time) ([]*domain.Rental, error) {
	return s.filter(func(r domain.Rental) bool {
		return r.ReturnDate.Before(today) && r.ActualReturnDate == nil
	}), nil
}

func (s memRentals) ListNonOverdue(ctx context.Context, today time.Time) ([]*domain.Rental, error) {
	return s.filter(func(r domain.Rental) bool {
		return r.ReturnDate.After(today) || r.ActualReturnDate != nil
	}), nil
}

func (s memRentals) filter(keep func(domain.Rental) bool) []*domain.Rental {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.Rental
	for _, r := range s.db.rentals {
		if keep(r) {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// payments

type memPayments struct{ db *memDB }

func (s memPayments) Create(ctx context.Context, p *domain.Payment) error {
	created := s.db.addPayment(*p)
	p.ID = created.ID
	return nil
}

func (s memPayments) FindBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.payments {
		if p.SessionID == sessionID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s memPayments) MarkPaid(ctx context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentPaid
	s.db.payments[id] = p
	return true, nil
}

func (s memPayments) ListAll(ctx context.Context, page domain.PageRequest) ([]*domain.Payment, int64, error) {
	all := s.filter(func(domain.Payment) bool { return true })
	return paginate(all, page), int64(len(all)), nil
}

func (s memPayments) ListByUser(ctx context.Context, userID string, page domain.PageRequest) ([]*domain.Payment, int64, error) {
	s.db.mu.Lock()
	owners := make(map[int64]string, len(s.db.rentals))
	for id, r := range s.db.rentals {
		owners[id] = r.UserID
	}
	s.db.mu.Unlock()

	all := s.filter(func(p domain.Payment) bool { return owners[p.RentalID] == userID })
	return paginate(all, page), int64(len(all)), nil
}

func (s memPayments) get(id int64) domain.Payment {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.payments[id]
}

func (s memPayments) filter(keep func(domain.Payment) bool) []*domain.Payment {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.Payment
	for _, p := range s.db.payments {
		if keep(p) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// users

type memUsers struct{ db *memDB }

func (s memUsers) Create(ctx context.Context, u *domain.User) error {
	s.db.addUser(*u)
	return nil
}

func (s memUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s memUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s memUsers) Exists(ctx context.Context, email string) (bool, error) {
	u, _ := s.FindByEmail(ctx, email)
	return u != nil, nil
}

func (s memUsers) SetTelegramChatID(ctx context.Context, id string, chatID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[id]
	u.TelegramChatID = &chatID
	s.db.users[id] = u
	return nil
}

func paginate[T any](all []T, page domain.PageRequest) []T {
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// recordingDispatcher counts notifications and can be told to fail.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls map[string][]string
	err   error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{calls: make(map[string][]string)}
}

func (d *recordingDispatcher) record(kind, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[kind] = append(d.calls[kind], userID)
	return d.err
}

func (d *recordingDispatcher) count(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls[kind])
}

func (d *recordingDispatcher) RentalCreated(ctx context.Context, n domain.RentalNotice) error {
	return d.record("created", n.User.ID)
}

func (d *recordingDispatcher) RentalReturned(ctx context.Context, n domain.RentalNotice) error {
	return d.record("returned", n.User.ID)
}

func (d *recordingDispatcher) RentalOverdue(ctx context.Context, n domain.RentalNotice) error {
	return d.record("overdue", n.User.ID)
}

func (d *recordingDispatcher) NoOverdueRentals(ctx context.Context, userID string) error {
	return d.record("non_overdue", userID)
}

func (d *recordingDispatcher) PaymentSucceeded(ctx context.Context, userID string) error {
	return d.record("paid", userID)
}

func (d *recordingDispatcher) PaymentCancelled(ctx context.Context, userID string) error {
	return d.record("cancelled", userID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
