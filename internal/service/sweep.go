package service

import (
	"context"
	"log/slog"

	"github.com/carsharing/backend/internal/domain"
)

// SweepResult counts what one sweep pass did.
type SweepResult struct {
	Matched  int `json:"matched"`
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

// SweepService re-derives the overdue classification and sends one
// notification per matching rental. Nothing is deduplicated across passes.
type SweepService struct {
	rentals  *RentalService
	users    UserStore
	vehicles VehicleStore
	notifier Dispatcher
	logger   *slog.Logger
}

func NewSweepService(rentals *RentalService, users UserStore, vehicles VehicleStore, notifier Dispatcher, logger *slog.Logger) *SweepService {
	return &SweepService{
		rentals:  rentals,
		users:    users,
		vehicles: vehicles,
		notifier: notifier,
		logger:   logger,
	}
}

// RunOverdue sends an overdue alert for every active rental past its due date.
func (s *SweepService) RunOverdue(ctx context.Context) (SweepResult, error) {
	rentals, err := s.rentals.ListOverdue(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	return s.notifyEach(ctx, "overdue", rentals, func(ctx context.Context, r *domain.Rental) error {
		return s.notifier.RentalOverdue(ctx, resolveNotice(ctx, s.users, s.vehicles, r))
	}), nil
}

// RunNonOverdue tells the owner of every rental not currently overdue that
// nothing is late.
func (s *SweepService) RunNonOverdue(ctx context.Context) (SweepResult, error) {
	rentals, err := s.rentals.ListNonOverdue(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	return s.notifyEach(ctx, "non-overdue", rentals, func(ctx context.Context, r *domain.Rental) error {
		return s.notifier.NoOverdueRentals(ctx, r.UserID)
	}), nil
}

func (s *SweepService) notifyEach(ctx context.Context, pass string, rentals []*domain.Rental, notify func(context.Context, *domain.Rental) error) SweepResult {
	res := SweepResult{Matched: len(rentals)}
	for _, r := range rentals {
		if err := notify(ctx, r); err != nil {
			res.Failed++
			s.logger.Warn("sweep notification failed", "pass", pass, "rental_id", r.ID, "error", err)
			continue
		}
		res.Notified++
	}
	s.logger.Info("sweep finished", "pass", pass, "matched", res.Matched, "notified", res.Notified, "failed", res.Failed)
	return res
}
