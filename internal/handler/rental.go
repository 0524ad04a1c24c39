package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/carsharing/backend/internal/domain"
)

// RentalService is the rental workflow the handler exposes.
type RentalService interface {
	CreateRental(ctx context.Context, userID string, req *domain.CreateRentalRequest) (*domain.Rental, error)
	ListRentals(ctx context.Context, p domain.Principal, userID string, active *bool) ([]*domain.Rental, error)
	GetRental(ctx context.Context, userID string, rentalID int64) (*domain.Rental, error)
	ReturnRental(ctx context.Context, p domain.Principal, rentalID int64, req *domain.ReturnRentalRequest) (*domain.Rental, error)
}

// RentalHandler handles rental HTTP endpoints.
type RentalHandler struct {
	svc RentalService
}

// NewRentalHandler creates a new RentalHandler.
func NewRentalHandler(svc RentalService) *RentalHandler {
	return &RentalHandler{svc: svc}
}

// Create handles POST /api/rentals.
func (h *RentalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRentalRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	rental, err := h.svc.CreateRental(r.Context(), principal(r).UserID, &req)
	if err != nil {
		committed(w, err, rental)
		return
	}
	JSON(w, http.StatusCreated, rental)
}

// List handles GET /api/rentals?userId=&isActive=.
func (h *RentalHandler) List(w http.ResponseWriter, r *http.Request) {
	var active *bool
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			Error(w, domain.ErrBadRequest("isActive must be true or false"))
			return
		}
		active = &v
	}

	rentals, err := h.svc.ListRentals(r.Context(), principal(r), r.URL.Query().Get("userId"), active)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rentals)
}

// Get handles GET /api/users/{userId}/rentals/{rentalId}.
func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	rentalID, err := int64Param(r, "rentalId")
	if err != nil {
		Error(w, err)
		return
	}

	p := principal(r)
	userID := chiParam(r, "userId")
	if userID != p.UserID && !p.IsManager() {
		Error(w, domain.ErrForbidden("you can only view your own rentals"))
		return
	}

	rental, err := h.svc.GetRental(r.Context(), userID, rentalID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rental)
}

// Return handles POST /api/rentals/{id}/return.
func (h *RentalHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		Error(w, err)
		return
	}

	var req domain.ReturnRentalRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	rental, err := h.svc.ReturnRental(r.Context(), principal(r), id, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rental)
}

// committed reports an error that happened after the change was saved, e.g.
// a failed notification. The saved resource is returned alongside the error.
func committed(w http.ResponseWriter, err error, data interface{}) {
	appErr, ok := domain.AsAppError(err)
	if !ok || appErr.Kind != domain.KindNotificationFailure || data == nil {
		Error(w, err)
		return
	}
	JSON(w, appErr.Code, map[string]interface{}{"error": appErr.Message, "data": data})
}
