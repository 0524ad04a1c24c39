package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carsharing/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const rentalColumns = `id, rental_date, return_date, actual_return_date, car_id, user_id`

// RentalRepository handles database operations for rentals.
type RentalRepository struct {
	db *pgxpool.Pool
}

// NewRentalRepository creates a new RentalRepository.
func NewRentalRepository(db *pgxpool.Pool) *RentalRepository {
	return &RentalRepository{db: db}
}

// Create inserts a new rental and fills in its generated ID.
func (r *RentalRepository) Create(ctx context.Context, rental *domain.Rental) error {
	query := `
		INSERT INTO rentals (rental_date, return_date, actual_return_date, car_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := conn(ctx, r.db).QueryRow(ctx, query,
		rental.RentalDate, rental.ReturnDate, rental.ActualReturnDate, rental.VehicleID, rental.UserID,
	).Scan(&rental.ID)
	if err != nil {
		return fmt.Errorf("failed to create rental: %w", err)
	}
	return nil
}

// FindByID returns a rental by ID, or nil when there is none.
func (r *RentalRepository) FindByID(ctx context.Context, id int64) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 AND is_deleted = FALSE`
	return r.scanOne(ctx, query, id)
}

// FindByIDForUpdate is FindByID with the row locked until the surrounding
// transaction ends.
func (r *RentalRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`
	return r.scanOne(ctx, query, id)
}

// FindByUserAndID returns a rental only if it belongs to userID.
func (r *RentalRepository) FindByUserAndID(ctx context.Context, userID string, id int64) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`
	return r.scanOne(ctx, query, id, userID)
}

// ListByUser returns every rental of a user, newest first.
func (r *RentalRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE user_id = $1 AND is_deleted = FALSE ORDER BY id DESC`
	return r.scanAll(ctx, query, userID)
}

// SetActualReturnDate records when the vehicle was handed back.
func (r *RentalRepository) SetActualReturnDate(ctx context.Context, id int64, date time.Time) error {
	_, err := conn(ctx, r.db).Exec(ctx, `UPDATE rentals SET actual_return_date = $1 WHERE id = $2`, date, id)
	if err != nil {
		return fmt.Errorf("failed to set actual return date: %w", err)
	}
	return nil
}

// ListOverdue returns active rentals whose due date is before today.
func (r *RentalRepository) ListOverdue(ctx context.Context, today time.Time) ([]*domain.Rental, error) {
	query := `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE return_date < $1 AND actual_return_date IS NULL AND is_deleted = FALSE
		ORDER BY id
	`
	return r.scanAll(ctx, query, today)
}

// ListNonOverdue returns rentals due after today or already returned.
// Active rentals due exactly today are in neither this set nor ListOverdue.
func (r *RentalRepository) ListNonOverdue(ctx context.Context, today time.Time) ([]*domain.Rental, error) {
	query := `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE (return_date > $1 OR actual_return_date IS NOT NULL) AND is_deleted = FALSE
		ORDER BY id
	`
	return r.scanAll(ctx, query, today)
}

func (r *RentalRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Rental, error) {
	var rental domain.Rental
	err := conn(ctx, r.db).QueryRow(ctx, query, args...).Scan(
		&rental.ID, &rental.RentalDate, &rental.ReturnDate, &rental.ActualReturnDate,
		&rental.VehicleID, &rental.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find rental: %w", err)
	}
	return &rental, nil
}

func (r *RentalRepository) scanAll(ctx context.Context, query string, args ...any) ([]*domain.Rental, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer rows.Close()

	var rentals []*domain.Rental
	for rows.Next() {
		var rental domain.Rental
		if err := rows.Scan(
			&rental.ID, &rental.RentalDate, &rental.ReturnDate, &rental.ActualReturnDate,
			&rental.VehicleID, &rental.UserID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, &rental)
	}
	return rentals, rows.Err()
}
