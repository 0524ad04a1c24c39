package handler

import (
	"context"
	"net/http"

	"github.com/carsharing/backend/internal/domain"
)

// PaymentService is the payment workflow the handler exposes.
type PaymentService interface {
	CreatePaymentSession(ctx context.Context, userID string, req *domain.CreatePaymentRequest) (*domain.Payment, error)
	ListPayments(ctx context.Context, p domain.Principal, page domain.PageRequest) (domain.Page[*domain.Payment], error)
	ConfirmSettlement(ctx context.Context, sessionID string) (*domain.Payment, error)
	CancelSettlement(ctx context.Context, sessionID string) (*domain.Payment, error)
}

type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// List handles GET /api/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListPayments(r.Context(), principal(r), pageRequest(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, page)
}

// Create handles POST /api/payments.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	p, err := h.svc.CreatePaymentSession(r.Context(), principal(r).UserID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, p)
}

// Success handles GET /api/payments/success/{sessionId}, the gateway's
// redirect after checkout. It is public; the session id is the credential.
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ConfirmSettlement(r.Context(), chiParam(r, "sessionId"))
	if err != nil {
		committed(w, err, p)
		return
	}
	JSON(w, http.StatusOK, p)
}

// Cancel handles GET /api/payments/cancel/{sessionId}.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CancelSettlement(r.Context(), chiParam(r, "sessionId"))
	if err != nil {
		committed(w, err, p)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Payment can be made later. The session is available for 24 hours.",
		"payment": p,
	})
}
