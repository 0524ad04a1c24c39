package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/pkg/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func TestCalculateAmount(t *testing.T) {
	vehicle := &domain.Vehicle{DailyFee: decimal.RequireFromString("20.00")}
	returnedOn := func(day int) *time.Time {
		d := date(day)
		return &d
	}

	tests := []struct {
		name   string
		rental *domain.Rental
		ptype  domain.PaymentType
		want   string
	}{
		{"payment is one daily fee", &domain.Rental{RentalDate: date(3), ReturnDate: date(10)}, domain.PaymentTypePayment, "20.00"},
		{"fine for three late days", &domain.Rental{ReturnDate: date(10), ActualReturnDate: returnedOn(13)}, domain.PaymentTypeFine, "60.00"},
		{"fine for early return", &domain.Rental{ReturnDate: date(10), ActualReturnDate: returnedOn(8)}, domain.PaymentTypeFine, "0.00"},
		{"fine for on-time return", &domain.Rental{ReturnDate: date(10), ActualReturnDate: returnedOn(10)}, domain.PaymentTypeFine, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateAmount(tt.rental, vehicle, tt.ptype)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestCalculateAmount_FineOnActiveRental(t *testing.T) {
	vehicle := &domain.Vehicle{DailyFee: decimal.RequireFromString("20.00")}
	_, err := CalculateAmount(&domain.Rental{ReturnDate: date(10)}, vehicle, domain.PaymentTypeFine)
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

type failingGateway struct{ err error }

func (g failingGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	return nil, g.err
}

func (g failingGateway) SessionStatus(ctx context.Context, sessionID string) (payment.SessionStatus, error) {
	return "", g.err
}

type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *stubLimiter) Allow(ctx context.Context, subject string) (bool, int, error) {
	l.calls++
	return l.allowed, 30, l.err
}

type paymentFixture struct {
	db       *memDB
	gateway  *payment.MockGateway
	notifier *recordingDispatcher
	svc      *PaymentService
	user     *domain.User
	rental   *domain.Rental
}

func newPaymentFixture(t *testing.T, gw payment.Gateway, limiter SessionLimiter) *paymentFixture {
	t.Helper()
	db := newMemDB()
	mock := payment.NewMockGateway("")
	if gw == nil {
		gw = mock
	}
	notifier := newRecordingDispatcher()
	user := db.addUser(domain.User{Email: "anna@example.com"})
	vehicle := db.addVehicle(domain.Vehicle{Brand: "BMW", Model: "X5", Inventory: 2, DailyFee: decimal.RequireFromString("100.00")})
	rental := db.addRental(domain.Rental{RentalDate: date(1), ReturnDate: date(8), VehicleID: vehicle.ID, UserID: user.ID})

	svc := NewPaymentService(memRentals{db}, memVehicles{db}, memPayments{db}, gw, notifier, limiter,
		PaymentOptions{SuccessURL: "http://localhost/success", CancelURL: "http://localhost/cancel"},
		clock.NewFixed(day1), discardLogger())
	return &paymentFixture{db: db, gateway: mock, notifier: notifier, svc: svc, user: user, rental: rental}
}

func (f *paymentFixture) create(t *testing.T, ptype domain.PaymentType) *domain.Payment {
	t.Helper()
	p, err := f.svc.CreatePaymentSession(context.Background(), f.user.ID,
		&domain.CreatePaymentRequest{RentalID: f.rental.ID, PaymentType: ptype})
	require.NoError(t, err)
	return p
}

func TestCreatePaymentSession_Pending(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)

	p := f.create(t, domain.PaymentTypePayment)

	require.Equal(t, "100.00", p.AmountToPay.StringFixed(2))
	require.Equal(t, domain.PaymentPending, p.Status)
	require.NotEmpty(t, p.SessionID)
	require.Contains(t, p.SessionURL, p.SessionID)

	stored := memPayments{f.db}.get(p.ID)
	require.Equal(t, domain.PaymentPending, stored.Status)
	require.True(t, stored.AmountToPay.Equal(decimal.RequireFromString("100")))
}

func TestCreatePaymentSession_Errors(t *testing.T) {
	t.Run("rental of another user", func(t *testing.T) {
		f := newPaymentFixture(t, nil, nil)
		_, err := f.svc.CreatePaymentSession(context.Background(), "someone-else",
			&domain.CreatePaymentRequest{RentalID: f.rental.ID, PaymentType: domain.PaymentTypePayment})
		require.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("gateway failure persists nothing", func(t *testing.T) {
		f := newPaymentFixture(t, failingGateway{err: errors.New("stripe unavailable")}, nil)
		_, err := f.svc.CreatePaymentSession(context.Background(), f.user.ID,
			&domain.CreatePaymentRequest{RentalID: f.rental.ID, PaymentType: domain.PaymentTypePayment})
		require.True(t, domain.IsKind(err, domain.KindGateway))
		all, _, _ := memPayments{f.db}.ListAll(context.Background(), domain.NewPageRequest(1, 10))
		require.Empty(t, all)
	})

	t.Run("fine for active rental", func(t *testing.T) {
		f := newPaymentFixture(t, nil, nil)
		_, err := f.svc.CreatePaymentSession(context.Background(), f.user.ID,
			&domain.CreatePaymentRequest{RentalID: f.rental.ID, PaymentType: domain.PaymentTypeFine})
		require.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("unknown type", func(t *testing.T) {
		f := newPaymentFixture(t, nil, nil)
		_, err := f.svc.CreatePaymentSession(context.Background(), f.user.ID,
			&domain.CreatePaymentRequest{RentalID: f.rental.ID, PaymentType: "TIP"})
		require.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("rate limited", func(t *testing.T) {
		limiter := &stubLimiter{allowed: false}
		f := newPaymentFixture(t, nil, limiter)
		_, err := f.svc.CreatePaymentSession(context.Background(), f.user.ID,
			&domain.CreatePaymentRequest{RentalID: f.rental.ID, PaymentType: domain.PaymentTypePayment})
		require.True(t, domain.IsKind(err, domain.KindRateLimited))
		require.Equal(t, 1, limiter.calls)
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		f := newPaymentFixture(t, nil, &stubLimiter{err: errors.New("redis down")})
		f.create(t, domain.PaymentTypePayment)
	})
}

func TestCreatePaymentSession_FineAfterLateReturn(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	returned := date(11)
	late := f.db.addRental(domain.Rental{
		RentalDate: date(1), ReturnDate: date(8), ActualReturnDate: &returned,
		VehicleID: f.rental.VehicleID, UserID: f.user.ID,
	})

	p, err := f.svc.CreatePaymentSession(context.Background(), f.user.ID,
		&domain.CreatePaymentRequest{RentalID: late.ID, PaymentType: domain.PaymentTypeFine})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentTypeFine, p.Type)
	require.Equal(t, "300.00", p.AmountToPay.StringFixed(2))
}

func TestConfirmSettlement_ExactlyOnce(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	ctx := context.Background()
	p := f.create(t, domain.PaymentTypePayment)

	_, err := f.svc.ConfirmSettlement(ctx, p.SessionID)
	require.True(t, domain.IsKind(err, domain.KindSettlementNotConfirmed))
	require.Equal(t, domain.PaymentPending, memPayments{f.db}.get(p.ID).Status)

	require.NoError(t, f.gateway.MarkPaid(p.SessionID))

	settled, err := f.svc.ConfirmSettlement(ctx, p.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, settled.Status)

	again, err := f.svc.ConfirmSettlement(ctx, p.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, again.Status)

	require.Equal(t, domain.PaymentPaid, memPayments{f.db}.get(p.ID).Status)
	require.Equal(t, 1, f.notifier.count("paid"))
}

func TestConfirmSettlement_Errors(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	_, err := f.svc.ConfirmSettlement(context.Background(), "cs_unknown")
	require.True(t, domain.IsKind(err, domain.KindNotFound))

	p := f.create(t, domain.PaymentTypePayment)
	require.NoError(t, f.gateway.MarkPaid(p.SessionID))
	f.notifier.err = errors.New("telegram down")

	settled, err := f.svc.ConfirmSettlement(context.Background(), p.SessionID)
	require.True(t, domain.IsKind(err, domain.KindNotificationFailure))
	require.Equal(t, domain.PaymentPaid, settled.Status)
	require.Equal(t, domain.PaymentPaid, memPayments{f.db}.get(p.ID).Status)
}

func TestConfirmSettlement_OwnerLookupFailsAfterPaid(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	p := f.create(t, domain.PaymentTypePayment)
	require.NoError(t, f.gateway.MarkPaid(p.SessionID))

	f.db.mu.Lock()
	delete(f.db.rentals, f.rental.ID)
	f.db.mu.Unlock()

	settled, err := f.svc.ConfirmSettlement(context.Background(), p.SessionID)
	require.True(t, domain.IsKind(err, domain.KindNotificationFailure), "got %v", err)
	require.NotNil(t, settled)
	require.Equal(t, domain.PaymentPaid, settled.Status)
	require.Equal(t, domain.PaymentPaid, memPayments{f.db}.get(p.ID).Status)
	require.Zero(t, f.notifier.count("paid"))

	// a repeated redirect sees the settled payment
	again, err := f.svc.ConfirmSettlement(context.Background(), p.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, again.Status)
}

func TestConfirmSettlement_GatewayError(t *testing.T) {
	f := newPaymentFixture(t, failingGateway{err: errors.New("timeout")}, nil)
	p := f.db.addPayment(domain.Payment{RentalID: f.rental.ID, Status: domain.PaymentPending, SessionID: "cs_1"})

	_, err := f.svc.ConfirmSettlement(context.Background(), p.SessionID)
	require.True(t, domain.IsKind(err, domain.KindGateway))
}

func TestCancelSettlement(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	ctx := context.Background()
	p := f.create(t, domain.PaymentTypePayment)

	got, err := f.svc.CancelSettlement(ctx, p.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, got.Status)
	require.Equal(t, 1, f.notifier.count("cancelled"))

	require.NoError(t, f.gateway.MarkPaid(p.SessionID))
	_, err = f.svc.ConfirmSettlement(ctx, p.SessionID)
	require.NoError(t, err)

	got, err = f.svc.CancelSettlement(ctx, p.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, got.Status)
	require.Equal(t, 1, f.notifier.count("cancelled"), "no notice once paid")

	_, err = f.svc.CancelSettlement(ctx, "cs_unknown")
	require.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestListPayments_ScopedByRole(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	ctx := context.Background()
	f.create(t, domain.PaymentTypePayment)

	other := f.db.addUser(domain.User{Email: "ben@example.com"})
	otherRental := f.db.addRental(domain.Rental{RentalDate: date(1), ReturnDate: date(8), VehicleID: f.rental.VehicleID, UserID: other.ID})
	f.db.addPayment(domain.Payment{RentalID: otherRental.ID, Status: domain.PaymentPending, SessionID: "cs_other"})

	page := domain.NewPageRequest(1, 10)

	own, err := f.svc.ListPayments(ctx, domain.Principal{UserID: f.user.ID, Role: domain.RoleCustomer}, page)
	require.NoError(t, err)
	require.Len(t, own.Data, 1)
	require.Equal(t, int64(1), own.Total)

	all, err := f.svc.ListPayments(ctx, domain.Principal{UserID: "m", Role: domain.RoleManager}, page)
	require.NoError(t, err)
	require.Len(t, all.Data, 2)
	require.Equal(t, int64(1), all.TotalPages)
}
