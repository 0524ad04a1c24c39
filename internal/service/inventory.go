package service

import (
	"context"
	"fmt"

	"github.com/carsharing/backend/internal/domain"
)

// InventoryLedger is the only writer of vehicle availability. Its methods
// must run inside a transaction opened by the caller so the unit change
// commits or rolls back together with the rental write.
type InventoryLedger struct {
	vehicles VehicleStore
}

func NewInventoryLedger(vehicles VehicleStore) *InventoryLedger {
	return &InventoryLedger{vehicles: vehicles}
}

// ReserveUnit takes one unit of the vehicle. The vehicle row stays locked
// until the transaction ends, so concurrent reservations queue up behind it.
func (l *InventoryLedger) ReserveUnit(ctx context.Context, vehicleID int64) error {
	inventory, found, err := l.vehicles.LockInventory(ctx, vehicleID)
	if err != nil {
		return domain.ErrInternal("failed to read inventory", err)
	}
	if !found {
		return domain.ErrNotFound(fmt.Sprintf("can't find car by id: %d", vehicleID))
	}
	if inventory <= 0 {
		return domain.ErrCapacityExhausted(vehicleID)
	}
	if err := l.vehicles.AdjustInventory(ctx, vehicleID, -1); err != nil {
		return domain.ErrInternal("failed to reserve vehicle", err)
	}
	return nil
}

// AdjustStock adds (delta > 0) or retires (delta < 0) physical units. Units
// out on rent can't be retired: the result must stay at or above zero.
func (l *InventoryLedger) AdjustStock(ctx context.Context, vehicleID int64, delta int) error {
	inventory, found, err := l.vehicles.LockInventory(ctx, vehicleID)
	if err != nil {
		return domain.ErrInternal("failed to read inventory", err)
	}
	if !found {
		return domain.ErrNotFound(fmt.Sprintf("can't find car by id: %d", vehicleID))
	}
	if inventory+delta < 0 {
		return domain.ErrValidation(fmt.Sprintf("can't retire %d units, only %d available", -delta, inventory))
	}
	if err := l.vehicles.AdjustInventory(ctx, vehicleID, delta); err != nil {
		return domain.ErrInternal("failed to adjust inventory", err)
	}
	return nil
}

// ReleaseUnit gives one unit back. There is no upper bound on inventory.
func (l *InventoryLedger) ReleaseUnit(ctx context.Context, vehicleID int64) error {
	if err := l.vehicles.AdjustInventory(ctx, vehicleID, 1); err != nil {
		return domain.ErrInternal("failed to release vehicle", err)
	}
	return nil
}
