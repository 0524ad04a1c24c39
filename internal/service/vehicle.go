package service

import (
	"context"
	"fmt"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/domain"
	"github.com/go-playground/validator/v10"
)

// VehicleService manages the car catalogue. Stock changes go through the
// InventoryLedger like rentals do.
type VehicleService struct {
	tx       Transactor
	vehicles VehicleStore
	ledger   *InventoryLedger
	clock    clock.Clock
	validate *validator.Validate
}

func NewVehicleService(tx Transactor, vehicles VehicleStore, clk clock.Clock) *VehicleService {
	return &VehicleService{
		tx:       tx,
		vehicles: vehicles,
		ledger:   NewInventoryLedger(vehicles),
		clock:    clk,
		validate: validator.New(),
	}
}

func (s *VehicleService) Create(ctx context.Context, req *domain.VehicleRequest) (*domain.Vehicle, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	v := &domain.Vehicle{
		Model:     req.Model,
		Brand:     req.Brand,
		Type:      req.Type,
		Inventory: req.Inventory,
		DailyFee:  req.DailyFee,
		CreatedAt: s.clock.Now(),
	}
	if err := s.vehicles.Create(ctx, v); err != nil {
		return nil, domain.ErrInternal("failed to create car", err)
	}
	return v, nil
}

func (s *VehicleService) Get(ctx context.Context, id int64) (*domain.Vehicle, error) {
	v, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find car", err)
	}
	if v == nil {
		return nil, domain.ErrNotFound(fmt.Sprintf("can't find car by id: %d", id))
	}
	return v, nil
}

func (s *VehicleService) List(ctx context.Context, page domain.PageRequest) (domain.Page[*domain.Vehicle], error) {
	vehicles, total, err := s.vehicles.List(ctx, page)
	if err != nil {
		return domain.Page[*domain.Vehicle]{}, domain.ErrInternal("failed to list cars", err)
	}
	return domain.NewPage(vehicles, page, total), nil
}

// Update replaces the catalogue data of a car. req.Inventory is ignored;
// use AdjustStock to add or retire units.
func (s *VehicleService) Update(ctx context.Context, id int64, req *domain.VehicleRequest) (*domain.Vehicle, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Model = req.Model
	v.Brand = req.Brand
	v.Type = req.Type
	v.DailyFee = req.DailyFee
	if err := s.vehicles.Update(ctx, v); err != nil {
		return nil, domain.ErrInternal("failed to update car", err)
	}
	return s.Get(ctx, id)
}

// AdjustStock adds or retires physical units of a car.
func (s *VehicleService) AdjustStock(ctx context.Context, id int64, req *domain.StockAdjustmentRequest) (*domain.Vehicle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.ledger.AdjustStock(ctx, id, req.Delta)
	})
	if err != nil {
		return nil, asAppError("failed to adjust stock", err)
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a car.
func (s *VehicleService) Delete(ctx context.Context, id int64) error {
	ok, err := s.vehicles.SoftDelete(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to delete car", err)
	}
	if !ok {
		return domain.ErrNotFound(fmt.Sprintf("can't find car by id: %d", id))
	}
	return nil
}

func (s *VehicleService) check(req *domain.VehicleRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.ErrValidation(formatValidationErrors(err))
	}
	if !req.DailyFee.IsPositive() {
		return domain.ErrValidation("dailyFee must be positive")
	}
	return nil
}
