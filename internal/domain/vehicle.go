package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VehicleType is the body category of a vehicle.
type VehicleType string

const (
	VehicleSedan     VehicleType = "SEDAN"
	VehicleSUV       VehicleType = "SUV"
	VehicleHatchback VehicleType = "HATCHBACK"
	VehicleUniversal VehicleType = "UNIVERSAL"
)

// Vehicle is a rentable car model with a count of available units.
type Vehicle struct {
	ID        int64           `json:"id"`
	Model     string          `json:"model"`
	Brand     string          `json:"brand"`
	Type      VehicleType     `json:"type"`
	Inventory int             `json:"inventory"`
	DailyFee  decimal.Decimal `json:"dailyFee"`
	CreatedAt time.Time       `json:"createdAt"`
}

// VehicleRequest is the validated input for creating or replacing a vehicle.
// Inventory is the initial stock and is only read on create.
type VehicleRequest struct {
	Model     string          `json:"model" validate:"required,max=100"`
	Brand     string          `json:"brand" validate:"required,max=100"`
	Type      VehicleType     `json:"type" validate:"required,oneof=SEDAN SUV HATCHBACK UNIVERSAL"`
	Inventory int             `json:"inventory" validate:"gte=0"`
	DailyFee  decimal.Decimal `json:"dailyFee"`
}

// StockAdjustmentRequest adds or retires units of a vehicle.
type StockAdjustmentRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// FleetStats are the counters shown on the manager dashboard.
type FleetStats struct {
	Vehicles        int `json:"vehicles"`
	AvailableUnits  int `json:"availableUnits"`
	ActiveRentals   int `json:"activeRentals"`
	OverdueRentals  int `json:"overdueRentals"`
	PendingPayments int `json:"pendingPayments"`
}
