package handler

import (
	"net/http"

	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/internal/service"
)

// VehicleHandler handles vehicle catalogue endpoints.
type VehicleHandler struct {
	svc *service.VehicleService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(svc *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{svc: svc}
}

// List handles GET /api/vehicles.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), pageRequest(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, page)
}

// Get handles GET /api/vehicles/{id}.
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		Error(w, err)
		return
	}
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, v)
}

// Create handles POST /api/vehicles.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.VehicleRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	v, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, v)
}

// Update handles PUT /api/vehicles/{id}.
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		Error(w, err)
		return
	}
	var req domain.VehicleRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	v, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, v)
}

// AdjustStock handles POST /api/vehicles/{id}/inventory.
func (h *VehicleHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		Error(w, err)
		return
	}
	var req domain.StockAdjustmentRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	v, err := h.svc.AdjustStock(r.Context(), id, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, v)
}

// Delete handles DELETE /api/vehicles/{id}.
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		Error(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
