package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carsharing/backend/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository computes dashboard counters.
type StatsRepository struct {
	db *pgxpool.Pool
}

func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// FleetStats counts cars, rentals and pending payments. A rental is overdue
// when its return date is before today. Counters that fail to load stay at
// zero and their errors are joined into the returned error.
func (r *StatsRepository) FleetStats(ctx context.Context, today time.Time) (domain.FleetStats, error) {
	var (
		s    domain.FleetStats
		errs []error
	)
	db := conn(ctx, r.db)

	if err := db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(inventory), 0) FROM cars WHERE NOT is_deleted`,
	).Scan(&s.Vehicles, &s.AvailableUnits); err != nil {
		errs = append(errs, fmt.Errorf("failed to count vehicles: %w", err))
	}
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rentals WHERE actual_return_date IS NULL AND NOT is_deleted`,
	).Scan(&s.ActiveRentals); err != nil {
		errs = append(errs, fmt.Errorf("failed to count active rentals: %w", err))
	}
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rentals WHERE actual_return_date IS NULL AND return_date < $1 AND NOT is_deleted`,
		today,
	).Scan(&s.OverdueRentals); err != nil {
		errs = append(errs, fmt.Errorf("failed to count overdue rentals: %w", err))
	}
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE status = 'PENDING' AND NOT is_deleted`,
	).Scan(&s.PendingPayments); err != nil {
		errs = append(errs, fmt.Errorf("failed to count pending payments: %w", err))
	}
	return s, errors.Join(errs...)
}
