package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/domain"
	"github.com/go-playground/validator/v10"
)

// RentalService manages the rental lifecycle: a rental takes one vehicle unit
// when created and gives it back when returned.
type RentalService struct {
	tx       Transactor
	rentals  RentalStore
	vehicles VehicleStore
	users    UserStore
	ledger   *InventoryLedger
	notifier Dispatcher
	clock    clock.Clock
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRentalService creates a new RentalService.
func NewRentalService(
	tx Transactor,
	rentals RentalStore,
	vehicles VehicleStore,
	users UserStore,
	notifier Dispatcher,
	clk clock.Clock,
	logger *slog.Logger,
) *RentalService {
	return &RentalService{
		tx:       tx,
		rentals:  rentals,
		vehicles: vehicles,
		users:    users,
		ledger:   NewInventoryLedger(vehicles),
		notifier: notifier,
		clock:    clk,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateRental reserves a unit of the requested vehicle and records the
// rental. The rental starts today and is due RentalPeriod later whatever
// dates the caller sent. If the commit succeeds but the notification fails,
// the committed rental is returned together with a notification_failure error.
func (s *RentalService) CreateRental(ctx context.Context, userID string, req *domain.CreateRentalRequest) (*domain.Rental, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find car", err)
	}
	if vehicle == nil {
		return nil, domain.ErrNotFound(fmt.Sprintf("can't find car by id: %d", req.VehicleID))
	}

	today := domain.DateOf(s.clock.Now())
	rental := &domain.Rental{
		RentalDate: today,
		ReturnDate: today.Add(domain.RentalPeriod),
		VehicleID:  vehicle.ID,
		UserID:     userID,
	}

	var user *domain.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.ReserveUnit(ctx, vehicle.ID); err != nil {
			return err
		}

		user, err = s.users.FindByID(ctx, userID)
		if err != nil {
			return domain.ErrInternal("failed to find user", err)
		}
		if user == nil {
			return domain.ErrNotFound("can't find user by id: " + userID)
		}

		if err := s.rentals.Create(ctx, rental); err != nil {
			return domain.ErrInternal("failed to create rental", err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError("failed to create rental", err)
	}

	vehicle.Inventory--
	s.logger.Info("rental created", "rental_id", rental.ID, "car_id", vehicle.ID, "user_id", userID)

	notice := domain.RentalNotice{User: user, Vehicle: vehicle, Rental: rental}
	if err := s.notifier.RentalCreated(ctx, notice); err != nil {
		return rental, domain.ErrNotificationFailure("rental created but notification failed", err)
	}
	return rental, nil
}

// ListRentalsForUser returns the rentals of userID. A nil active returns all
// of them, otherwise only active or only returned rentals.
func (s *RentalService) ListRentalsForUser(ctx context.Context, userID string, active *bool) ([]*domain.Rental, error) {
	rentals, err := s.rentals.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list rentals", err)
	}
	if active == nil {
		return orEmpty(rentals), nil
	}

	filtered := make([]*domain.Rental, 0, len(rentals))
	for _, r := range rentals {
		if r.IsActive() == *active {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// ListRentals resolves whose rentals the principal may see. Customers can only
// list their own; managers may pass any user id.
func (s *RentalService) ListRentals(ctx context.Context, p domain.Principal, userID string, active *bool) ([]*domain.Rental, error) {
	if userID == "" {
		userID = p.UserID
	}
	if userID != p.UserID && !p.IsManager() {
		return nil, domain.ErrForbidden("you can only view your own rentals")
	}
	return s.ListRentalsForUser(ctx, userID, active)
}

// GetRental returns a rental only if it belongs to userID.
func (s *RentalService) GetRental(ctx context.Context, userID string, rentalID int64) (*domain.Rental, error) {
	rental, err := s.rentals.FindByUserAndID(ctx, userID, rentalID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find rental", err)
	}
	if rental == nil {
		return nil, domain.ErrNotFound(fmt.Sprintf("can't find rental with id %d for user %s", rentalID, userID))
	}
	return rental, nil
}

// ReturnRental records the hand back and releases the vehicle unit in one
// transaction. A failed notification is logged; the return stands.
func (s *RentalService) ReturnRental(ctx context.Context, p domain.Principal, rentalID int64, req *domain.ReturnRentalRequest) (*domain.Rental, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	actual, err := time.Parse(domain.DateLayout, req.ReturnDate)
	if err != nil {
		return nil, domain.ErrValidation("returnDate must be a date in YYYY-MM-DD format")
	}

	var rental *domain.Rental
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rental, err = s.rentals.FindByIDForUpdate(ctx, rentalID)
		if err != nil {
			return domain.ErrInternal("failed to find rental", err)
		}
		if rental == nil || (rental.UserID != p.UserID && !p.IsManager()) {
			return domain.ErrNotFound(fmt.Sprintf("can't find rental by id: %d", rentalID))
		}
		if !rental.IsActive() {
			return domain.ErrAlreadyReturned(rentalID)
		}
		if actual.Before(domain.DateOf(rental.RentalDate)) {
			return domain.ErrValidation("returnDate can't be before the rental date")
		}

		if err := s.rentals.SetActualReturnDate(ctx, rental.ID, actual); err != nil {
			return domain.ErrInternal("failed to return rental", err)
		}
		if err := s.ledger.ReleaseUnit(ctx, rental.VehicleID); err != nil {
			return err
		}
		rental.ActualReturnDate = &actual
		return nil
	})
	if err != nil {
		return nil, asAppError("failed to return rental", err)
	}

	s.logger.Info("rental returned", "rental_id", rental.ID, "car_id", rental.VehicleID)

	notice := resolveNotice(ctx, s.users, s.vehicles, rental)
	if err := s.notifier.RentalReturned(ctx, notice); err != nil {
		s.logger.Warn("rental return notification failed", "rental_id", rental.ID, "error", err)
	}
	return rental, nil
}

// ListOverdue returns active rentals due before today.
func (s *RentalService) ListOverdue(ctx context.Context) ([]*domain.Rental, error) {
	rentals, err := s.rentals.ListOverdue(ctx, domain.DateOf(s.clock.Now()))
	if err != nil {
		return nil, domain.ErrInternal("failed to list overdue rentals", err)
	}
	return orEmpty(rentals), nil
}

// ListNonOverdue returns rentals due after today or already returned. A
// rental due today and still out is in neither this list nor ListOverdue.
func (s *RentalService) ListNonOverdue(ctx context.Context) ([]*domain.Rental, error) {
	rentals, err := s.rentals.ListNonOverdue(ctx, domain.DateOf(s.clock.Now()))
	if err != nil {
		return nil, domain.ErrInternal("failed to list non-overdue rentals", err)
	}
	return orEmpty(rentals), nil
}

// resolveNotice loads the owner and vehicle of a rental for a notification.
// Missing rows degrade to id-only placeholders so the message is still sent.
func resolveNotice(ctx context.Context, users UserStore, vehicles VehicleStore, rental *domain.Rental) domain.RentalNotice {
	notice := domain.RentalNotice{
		User:    &domain.User{ID: rental.UserID},
		Vehicle: &domain.Vehicle{ID: rental.VehicleID},
		Rental:  rental,
	}
	if u, err := users.FindByID(ctx, rental.UserID); err == nil && u != nil {
		notice.User = u
	}
	if v, err := vehicles.FindByID(ctx, rental.VehicleID); err == nil && v != nil {
		notice.Vehicle = v
	}
	return notice
}

// asAppError passes AppErrors through and wraps anything else as internal.
func asAppError(msg string, err error) error {
	if _, ok := domain.AsAppError(err); ok {
		return err
	}
	return domain.ErrInternal(msg, err)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
