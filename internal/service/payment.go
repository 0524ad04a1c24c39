package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/pkg/payment"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// PaymentProductName is the line item shown on the hosted checkout page.
const PaymentProductName = "Car Rental Payment"

// SessionLimiter throttles payment session creation per user.
type SessionLimiter interface {
	Allow(ctx context.Context, subject string) (allowed bool, retryAfter int, err error)
}

// PaymentOptions configures the hosted checkout.
type PaymentOptions struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	// Timeout bounds every gateway call. Calls are never retried.
	Timeout time.Duration
}

// PaymentService computes amounts owed for rentals, opens gateway sessions
// and records their settlement.
type PaymentService struct {
	rentals  RentalStore
	vehicles VehicleStore
	payments PaymentStore
	gateway  payment.Gateway
	notifier Dispatcher
	limiter  SessionLimiter
	opts     PaymentOptions
	clock    clock.Clock
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPaymentService creates a new PaymentService. limiter may be nil.
func NewPaymentService(
	rentals RentalStore,
	vehicles VehicleStore,
	payments PaymentStore,
	gateway payment.Gateway,
	notifier Dispatcher,
	limiter SessionLimiter,
	opts PaymentOptions,
	clk clock.Clock,
	logger *slog.Logger,
) *PaymentService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &PaymentService{
		rentals:  rentals,
		vehicles: vehicles,
		payments: payments,
		gateway:  gateway,
		notifier: notifier,
		limiter:  limiter,
		opts:     opts,
		clock:    clk,
		validate: validator.New(),
		logger:   logger,
	}
}

// CalculateAmount returns what is owed for a rental. PAYMENT is one daily fee
// regardless of the rental length. FINE is one daily fee per day the vehicle
// came back late, and is only defined for returned rentals.
func CalculateAmount(rental *domain.Rental, vehicle *domain.Vehicle, ptype domain.PaymentType) (decimal.Decimal, error) {
	switch ptype {
	case domain.PaymentTypePayment:
		return vehicle.DailyFee, nil
	case domain.PaymentTypeFine:
		if rental.ActualReturnDate == nil {
			return decimal.Zero, domain.ErrValidation(fmt.Sprintf("rental %d has not been returned yet, fine can't be calculated", rental.ID))
		}
		days := domain.DaysBetween(rental.ReturnDate, *rental.ActualReturnDate)
		if days < 0 {
			days = 0
		}
		return vehicle.DailyFee.Mul(decimal.NewFromInt(days)), nil
	default:
		return decimal.Zero, domain.ErrValidation("unknown payment type: " + string(ptype))
	}
}

// CreatePaymentSession opens a hosted checkout for a rental of the requester
// and stores it as a PENDING payment.
func (s *PaymentService) CreatePaymentSession(ctx context.Context, userID string, req *domain.CreatePaymentRequest) (*domain.Payment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, "payment_session:"+userID)
		if err != nil {
			// fail open
			s.logger.Warn("payment rate limiter unavailable", "error", err)
		} else if !allowed {
			return nil, domain.ErrRateLimited(fmt.Sprintf("too many payment sessions, retry in %d seconds", retryAfter))
		}
	}

	rental, err := s.rentals.FindByUserAndID(ctx, userID, req.RentalID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find rental", err)
	}
	if rental == nil {
		return nil, domain.ErrNotFound(fmt.Sprintf("can't find rental with id %d for user %s", req.RentalID, userID))
	}

	vehicle, err := s.vehicles.FindByID(ctx, rental.VehicleID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find car", err)
	}
	if vehicle == nil {
		return nil, domain.ErrNotFound(fmt.Sprintf("can't find car by id: %d", rental.VehicleID))
	}

	amount, err := CalculateAmount(rental, vehicle, req.PaymentType)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, domain.ErrValidation("nothing to pay for this rental")
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	session, err := s.gateway.CreateSession(gctx, payment.SessionRequest{
		Amount:      amount,
		Currency:    s.opts.Currency,
		ProductName: PaymentProductName,
		SuccessURL:  s.opts.SuccessURL,
		CancelURL:   s.opts.CancelURL,
	})
	if err != nil {
		return nil, domain.ErrGateway("failed to create payment session", err)
	}

	p := &domain.Payment{
		RentalID:    rental.ID,
		Type:        req.PaymentType,
		Status:      domain.PaymentPending,
		SessionURL:  session.URL,
		SessionID:   session.ID,
		AmountToPay: amount,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, domain.ErrInternal("failed to save payment", err)
	}

	s.logger.Info("payment session created",
		"payment_id", p.ID, "rental_id", rental.ID, "type", p.Type, "amount", amount.StringFixed(2))
	return p, nil
}

// ListPayments returns one page of payments. Managers see every payment,
// everyone else only payments for their own rentals.
func (s *PaymentService) ListPayments(ctx context.Context, p domain.Principal, page domain.PageRequest) (domain.Page[*domain.Payment], error) {
	var (
		payments []*domain.Payment
		total    int64
		err      error
	)
	if p.IsManager() {
		payments, total, err = s.payments.ListAll(ctx, page)
	} else {
		payments, total, err = s.payments.ListByUser(ctx, p.UserID, page)
	}
	if err != nil {
		return domain.Page[*domain.Payment]{}, domain.ErrInternal("failed to list payments", err)
	}
	return domain.NewPage(payments, page, total), nil
}

// ConfirmSettlement marks the payment PAID once the gateway reports the
// session as paid. A payment that is already PAID is returned as is, without
// asking the gateway again or notifying twice.
func (s *PaymentService) ConfirmSettlement(ctx context.Context, sessionID string) (*domain.Payment, error) {
	p, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentPaid {
		return p, nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	status, err := s.gateway.SessionStatus(gctx, sessionID)
	if err != nil {
		return nil, domain.ErrGateway("failed to retrieve payment session", err)
	}
	if status != payment.StatusPaid {
		return nil, domain.ErrSettlementNotConfirmed(sessionID)
	}

	won, err := s.payments.MarkPaid(ctx, p.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to update payment", err)
	}
	p.Status = domain.PaymentPaid
	if !won {
		return p, nil
	}
	s.logger.Info("payment settled", "payment_id", p.ID, "session_id", sessionID)

	// the payment is PAID from here on, so failures are reported with it
	userID, err := s.ownerOf(ctx, p)
	if err != nil {
		s.logger.Warn("settled payment has no owner to notify", "payment_id", p.ID, "rental_id", p.RentalID, "error", err)
		return p, domain.ErrNotificationFailure("payment settled but owner lookup failed", err)
	}
	if err := s.notifier.PaymentSucceeded(ctx, userID); err != nil {
		return p, domain.ErrNotificationFailure("payment settled but notification failed", err)
	}
	return p, nil
}

// CancelSettlement tells the owner their checkout was abandoned. The payment
// stays PENDING so the same session can still be completed.
func (s *PaymentService) CancelSettlement(ctx context.Context, sessionID string) (*domain.Payment, error) {
	p, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentPending {
		return p, nil
	}

	userID, err := s.ownerOf(ctx, p)
	if err != nil {
		return p, err
	}
	if err := s.notifier.PaymentCancelled(ctx, userID); err != nil {
		return p, domain.ErrNotificationFailure("payment cancel notification failed", err)
	}
	return p, nil
}

func (s *PaymentService) findBySession(ctx context.Context, sessionID string) (*domain.Payment, error) {
	p, err := s.payments.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find payment", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("can't find payment by session id: " + sessionID)
	}
	return p, nil
}

func (s *PaymentService) ownerOf(ctx context.Context, p *domain.Payment) (string, error) {
	rental, err := s.rentals.FindByID(ctx, p.RentalID)
	if err != nil {
		return "", domain.ErrInternal("failed to find rental", err)
	}
	if rental == nil {
		return "", domain.ErrNotFound(fmt.Sprintf("can't find rental by id: %d", p.RentalID))
	}
	return rental.UserID, nil
}
