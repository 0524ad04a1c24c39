package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carsharing/backend/internal/clock"
	"github.com/carsharing/backend/internal/contextkeys"
	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubRentals struct {
	created   *domain.Rental
	createErr error
	gotActive *bool
	gotUser   string
	listErr   error
}

func (s *stubRentals) CreateRental(_ context.Context, userID string, req *domain.CreateRentalRequest) (*domain.Rental, error) {
	s.gotUser = userID
	return s.created, s.createErr
}

func (s *stubRentals) ListRentals(_ context.Context, _ domain.Principal, userID string, active *bool) ([]*domain.Rental, error) {
	s.gotUser, s.gotActive = userID, active
	return []*domain.Rental{}, s.listErr
}

func (s *stubRentals) GetRental(_ context.Context, userID string, rentalID int64) (*domain.Rental, error) {
	return &domain.Rental{ID: rentalID, UserID: userID}, nil
}

func (s *stubRentals) ReturnRental(_ context.Context, _ domain.Principal, rentalID int64, _ *domain.ReturnRentalRequest) (*domain.Rental, error) {
	if rentalID == 99 {
		return nil, domain.ErrAlreadyReturned(rentalID)
	}
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	return &domain.Rental{ID: rentalID, ActualReturnDate: &now}, nil
}

type stubPayments struct {
	confirmErr error
}

func (s *stubPayments) CreatePaymentSession(_ context.Context, _ string, req *domain.CreatePaymentRequest) (*domain.Payment, error) {
	return &domain.Payment{ID: 1, RentalID: req.RentalID, Status: domain.PaymentPending, AmountToPay: decimal.RequireFromString("100.00")}, nil
}

func (s *stubPayments) ListPayments(_ context.Context, _ domain.Principal, page domain.PageRequest) (domain.Page[*domain.Payment], error) {
	return domain.NewPage[*domain.Payment](nil, page, 0), nil
}

func (s *stubPayments) ConfirmSettlement(_ context.Context, sessionID string) (*domain.Payment, error) {
	paid := &domain.Payment{SessionID: sessionID, Status: domain.PaymentPaid}
	if domain.IsKind(s.confirmErr, domain.KindNotificationFailure) {
		return paid, s.confirmErr
	}
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return paid, nil
}

func (s *stubPayments) CancelSettlement(_ context.Context, sessionID string) (*domain.Payment, error) {
	return &domain.Payment{SessionID: sessionID, Status: domain.PaymentPending}, nil
}

// as injects the caller the Auth middleware would have set.
func as(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), contextkeys.UserID, userID)
			ctx = context.WithValue(ctx, contextkeys.UserRole, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(rentals RentalService, payments PaymentService, userID, role string) http.Handler {
	rh := NewRentalHandler(rentals)
	ph := NewPaymentHandler(payments)

	r := chi.NewRouter()
	r.Get("/api/payments/success/{sessionId}", ph.Success)
	r.Get("/api/payments/cancel/{sessionId}", ph.Cancel)
	r.Group(func(r chi.Router) {
		r.Use(as(userID, role))
		r.Post("/api/rentals", rh.Create)
		r.Get("/api/rentals", rh.List)
		r.Get("/api/users/{userId}/rentals/{rentalId}", rh.Get)
		r.Post("/api/rentals/{id}/return", rh.Return)
		r.Get("/api/payments", ph.List)
		r.Post("/api/payments", ph.Create)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRentalHandler_Create(t *testing.T) {
	body := `{"vehicleId":1,"rentalDate":"2024-03-01","returnDate":"2024-03-02"}`

	t.Run("created", func(t *testing.T) {
		stub := &stubRentals{created: &domain.Rental{ID: 7, VehicleID: 1}}
		rec := do(t, newRouter(stub, &stubPayments{}, "u-1", domain.RoleCustomer), http.MethodPost, "/api/rentals", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, "u-1", stub.gotUser)
	})

	t.Run("capacity exhausted", func(t *testing.T) {
		stub := &stubRentals{createErr: domain.ErrCapacityExhausted(1)}
		rec := do(t, newRouter(stub, &stubPayments{}, "u-1", domain.RoleCustomer), http.MethodPost, "/api/rentals", body)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("notification failure keeps rental in body", func(t *testing.T) {
		stub := &stubRentals{
			created:   &domain.Rental{ID: 7},
			createErr: domain.ErrNotificationFailure("failed to send notification", errors.New("down")),
		}
		rec := do(t, newRouter(stub, &stubPayments{}, "u-1", domain.RoleCustomer), http.MethodPost, "/api/rentals", body)
		require.Equal(t, http.StatusBadGateway, rec.Code)

		var resp struct {
			Error string        `json:"error"`
			Data  domain.Rental `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(7), resp.Data.ID)
		require.NotEmpty(t, resp.Error)
	})

	t.Run("bad json", func(t *testing.T) {
		rec := do(t, newRouter(&stubRentals{}, &stubPayments{}, "u-1", domain.RoleCustomer), http.MethodPost, "/api/rentals", "{")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRentalHandler_List(t *testing.T) {
	stub := &stubRentals{}
	h := newRouter(stub, &stubPayments{}, "u-1", domain.RoleManager)

	rec := do(t, h, http.MethodGet, "/api/rentals?userId=u-2&isActive=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-2", stub.gotUser)
	require.NotNil(t, stub.gotActive)
	require.False(t, *stub.gotActive)

	rec = do(t, h, http.MethodGet, "/api/rentals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, stub.gotActive)

	rec = do(t, h, http.MethodGet, "/api/rentals?isActive=maybe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRentalHandler_Get(t *testing.T) {
	customer := newRouter(&stubRentals{}, &stubPayments{}, "u-1", domain.RoleCustomer)
	require.Equal(t, http.StatusOK, do(t, customer, http.MethodGet, "/api/users/u-1/rentals/3", "").Code)
	require.Equal(t, http.StatusForbidden, do(t, customer, http.MethodGet, "/api/users/u-2/rentals/3", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, customer, http.MethodGet, "/api/users/u-1/rentals/x", "").Code)

	manager := newRouter(&stubRentals{}, &stubPayments{}, "m-1", domain.RoleManager)
	require.Equal(t, http.StatusOK, do(t, manager, http.MethodGet, "/api/users/u-2/rentals/3", "").Code)
}

func TestRentalHandler_Return(t *testing.T) {
	h := newRouter(&stubRentals{}, &stubPayments{}, "u-1", domain.RoleCustomer)
	body := `{"returnDate":"2024-03-05"}`

	rec := do(t, h, http.MethodPost, "/api/rentals/3/return", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"actualReturnDate":"2024-03-05T00:00:00Z"`)

	rec = do(t, h, http.MethodPost, "/api/rentals/99/return", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentHandler(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		h := newRouter(&stubRentals{}, &stubPayments{}, "u-1", domain.RoleCustomer)
		rec := do(t, h, http.MethodPost, "/api/payments", `{"rentalId":5,"paymentType":"PAYMENT"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Contains(t, rec.Body.String(), `"amountToPay":"100"`)
	})

	t.Run("list pages", func(t *testing.T) {
		h := newRouter(&stubRentals{}, &stubPayments{}, "u-1", domain.RoleCustomer)
		rec := do(t, h, http.MethodGet, "/api/payments?page=2&limit=500", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var page domain.Page[*domain.Payment]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Equal(t, 2, page.Page)
		require.Equal(t, domain.MaxPageSize, page.Limit)
	})

	t.Run("success", func(t *testing.T) {
		h := newRouter(&stubRentals{}, &stubPayments{}, "", "")
		rec := do(t, h, http.MethodGet, "/api/payments/success/cs_1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"status":"PAID"`)
	})

	t.Run("success not confirmed", func(t *testing.T) {
		h := newRouter(&stubRentals{}, &stubPayments{confirmErr: domain.ErrSettlementNotConfirmed("cs_1")}, "", "")
		rec := do(t, h, http.MethodGet, "/api/payments/success/cs_1", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("success settled without owner notified", func(t *testing.T) {
		stub := &stubPayments{confirmErr: domain.ErrNotificationFailure("payment settled but owner lookup failed", errors.New("rental gone"))}
		h := newRouter(&stubRentals{}, stub, "", "")
		rec := do(t, h, http.MethodGet, "/api/payments/success/cs_1", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)

		var body struct {
			Error string          `json:"error"`
			Data  *domain.Payment `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "payment settled but owner lookup failed", body.Error)
		require.Equal(t, domain.PaymentPaid, body.Data.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		h := newRouter(&stubRentals{}, &stubPayments{}, "", "")
		rec := do(t, h, http.MethodGet, "/api/payments/cancel/cs_1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "24 hours")
	})
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(failingPinger{}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(failingPinger{err: errors.New("down")}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "degraded")
}

func TestError_UnknownIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("db exploded"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "exploded")
}

type stubSweeper struct{ err error }

func (s stubSweeper) RunOverdue(context.Context) (service.SweepResult, error) {
	return service.SweepResult{Matched: 2, Notified: 1, Failed: 1}, s.err
}

func (s stubSweeper) RunNonOverdue(context.Context) (service.SweepResult, error) {
	return service.SweepResult{Matched: 3, Notified: 3}, s.err
}

type stubSimulator struct{ known string }

func (s stubSimulator) MarkPaid(sessionID string) error {
	if sessionID != s.known {
		return errors.New("checkout session not found")
	}
	return nil
}

type stubStats struct {
	stats    domain.FleetStats
	err      error
	gotToday time.Time
}

func (s *stubStats) FleetStats(_ context.Context, today time.Time) (domain.FleetStats, error) {
	s.gotToday = today
	return s.stats, s.err
}

func TestAdminHandler(t *testing.T) {
	newAdmin := func(sw Sweeper, sim SettlementSimulator) http.Handler {
		h := NewAdminHandler(&stubStats{}, sw, sim, clock.NewFixed(time.Now()))
		r := chi.NewRouter()
		r.Post("/api/admin/sweeps/overdue", h.SweepOverdue)
		r.Post("/api/admin/sweeps/non-overdue", h.SweepNonOverdue)
		r.Post("/api/admin/payments/{sessionId}/simulate", h.SimulatePayment)
		return r
	}

	t.Run("sweeps", func(t *testing.T) {
		h := newAdmin(stubSweeper{}, nil)

		rec := do(t, h, http.MethodPost, "/api/admin/sweeps/overdue", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var res service.SweepResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, service.SweepResult{Matched: 2, Notified: 1, Failed: 1}, res)

		rec = do(t, h, http.MethodPost, "/api/admin/sweeps/non-overdue", "")
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("sweep query fails", func(t *testing.T) {
		h := newAdmin(stubSweeper{err: domain.ErrInternal("failed to list rentals", errors.New("db"))}, nil)
		rec := do(t, h, http.MethodPost, "/api/admin/sweeps/overdue", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("simulate", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound,
			do(t, newAdmin(stubSweeper{}, nil), http.MethodPost, "/api/admin/payments/cs_1/simulate", "").Code)

		h := newAdmin(stubSweeper{}, stubSimulator{known: "cs_1"})
		require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/admin/payments/cs_1/simulate", "").Code)
		require.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/admin/payments/cs_2/simulate", "").Code)
	})
}

func TestAdminHandler_GetStats(t *testing.T) {
	// late evening on the 10th: rentals due on the 9th are overdue, due on
	// the 10th are not, whatever the database server's own date is
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	t.Run("counts against the service clock", func(t *testing.T) {
		stats := &stubStats{stats: domain.FleetStats{
			Vehicles: 4, AvailableUnits: 9, ActiveRentals: 3, OverdueRentals: 1, PendingPayments: 2,
		}}
		h := NewAdminHandler(stats, stubSweeper{}, nil, clock.NewFixed(now))

		rec := do(t, http.HandlerFunc(h.GetStats), http.MethodGet, "/api/admin/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), stats.gotToday)
		require.JSONEq(t,
			`{"vehicles":4,"availableUnits":9,"activeRentals":3,"overdueRentals":1,"pendingPayments":2}`,
			rec.Body.String())
	})

	t.Run("partial failure still answers", func(t *testing.T) {
		stats := &stubStats{
			stats: domain.FleetStats{Vehicles: 4},
			err:   errors.New("failed to count overdue rentals: timeout"),
		}
		h := NewAdminHandler(stats, stubSweeper{}, nil, clock.NewFixed(now))

		rec := do(t, http.HandlerFunc(h.GetStats), http.MethodGet, "/api/admin/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got domain.FleetStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Equal(t, domain.FleetStats{Vehicles: 4}, got)
	})
}
