package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/carsharing/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const vehicleColumns = `id, model, brand, type, inventory, daily_fee::text, created_at`

// VehicleRepository handles database operations for cars.
type VehicleRepository struct {
	db *pgxpool.Pool
}

// NewVehicleRepository creates a new VehicleRepository.
func NewVehicleRepository(db *pgxpool.Pool) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Create inserts a new car and fills in its generated ID.
func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO cars (model, brand, type, inventory, daily_fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := conn(ctx, r.db).QueryRow(ctx, query,
		v.Model, v.Brand, string(v.Type), v.Inventory, v.DailyFee.String(), v.CreatedAt,
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}
	return nil
}

// FindByID returns a non-deleted car, or nil when there is none.
func (r *VehicleRepository) FindByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM cars WHERE id = $1 AND is_deleted = FALSE`
	v, err := scanVehicle(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	return v, nil
}

// List returns one page of non-deleted cars and the total count.
func (r *VehicleRepository) List(ctx context.Context, page domain.PageRequest) ([]*domain.Vehicle, int64, error) {
	db := conn(ctx, r.db)

	var total int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM cars WHERE is_deleted = FALSE`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cars: %w", err)
	}

	query := `SELECT ` + vehicleColumns + ` FROM cars WHERE is_deleted = FALSE ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := db.Query(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan car: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, total, rows.Err()
}

// Update replaces the catalogue fields of a car. Inventory is not touched;
// it only moves through AdjustInventory.
func (r *VehicleRepository) Update(ctx context.Context, v *domain.Vehicle) error {
	query := `
		UPDATE cars SET model = $1, brand = $2, type = $3, daily_fee = $4
		WHERE id = $5 AND is_deleted = FALSE
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		v.Model, v.Brand, string(v.Type), v.DailyFee.String(), v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update car: %w", err)
	}
	return nil
}

// SoftDelete flags a car as deleted. It reports whether a row was affected.
func (r *VehicleRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `UPDATE cars SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete car: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LockInventory reads the inventory of a car and locks its row until the
// surrounding transaction ends. found is false when the car does not exist.
func (r *VehicleRepository) LockInventory(ctx context.Context, id int64) (inventory int, found bool, err error) {
	query := `SELECT inventory FROM cars WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`
	err = conn(ctx, r.db).QueryRow(ctx, query, id).Scan(&inventory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to lock car inventory: %w", err)
	}
	return inventory, true, nil
}

// AdjustInventory adds delta to the inventory of a car.
func (r *VehicleRepository) AdjustInventory(ctx context.Context, id int64, delta int) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `UPDATE cars SET inventory = inventory + $1 WHERE id = $2`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust car inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to adjust car inventory: car %d not found", id)
	}
	return nil
}

func scanVehicle(row pgx.Row) (*domain.Vehicle, error) {
	var (
		v       domain.Vehicle
		vtype   string
		feeText string
	)
	if err := row.Scan(&v.ID, &v.Model, &v.Brand, &vtype, &v.Inventory, &feeText, &v.CreatedAt); err != nil {
		return nil, err
	}
	fee, err := parseMoney(feeText)
	if err != nil {
		return nil, err
	}
	v.Type = domain.VehicleType(vtype)
	v.DailyFee = fee
	return &v, nil
}
