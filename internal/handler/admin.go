package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/internal/service"
)

// Sweeper runs the reminder passes on demand.
type Sweeper interface {
	RunOverdue(ctx context.Context) (service.SweepResult, error)
	RunNonOverdue(ctx context.Context) (service.SweepResult, error)
}

// SettlementSimulator marks a checkout session as paid without a real
// gateway. Only the mock gateway implements it.
type SettlementSimulator interface {
	MarkPaid(sessionID string) error
}

// StatsSource loads the dashboard counters for a given calendar day.
type StatsSource interface {
	FleetStats(ctx context.Context, today time.Time) (domain.FleetStats, error)
}

type AdminHandler struct {
	stats     StatsSource
	sweeper   Sweeper
	simulator SettlementSimulator
	clock     clock.Clock
}

// NewAdminHandler creates a new AdminHandler. simulator may be nil.
func NewAdminHandler(stats StatsSource, sweeper Sweeper, simulator SettlementSimulator, clk clock.Clock) *AdminHandler {
	return &AdminHandler{stats: stats, sweeper: sweeper, simulator: simulator, clock: clk}
}

// GetStats returns fleet-wide counters. Overdue is judged against the
// service clock, the same day the overdue sweep uses.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.FleetStats(r.Context(), domain.DateOf(h.clock.Now()))
	if err != nil {
		slog.Warn("failed to load some fleet stats", "error", err)
	}
	JSON(w, http.StatusOK, stats)
}

// SweepOverdue handles POST /api/admin/sweeps/overdue.
func (h *AdminHandler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.RunOverdue(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// SweepNonOverdue handles POST /api/admin/sweeps/non-overdue.
func (h *AdminHandler) SweepNonOverdue(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.RunNonOverdue(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// SimulatePayment handles POST /api/admin/payments/{sessionId}/simulate. It
// marks a mock checkout session as paid so the success redirect can settle it.
func (h *AdminHandler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	if h.simulator == nil {
		Error(w, domain.ErrNotFound("payment simulation is disabled"))
		return
	}
	if err := h.simulator.MarkPaid(chiParam(r, "sessionId")); err != nil {
		Error(w, domain.ErrNotFound(err.Error()))
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
