package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType distinguishes the regular rental fee from an overdue fine.
type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT"
	PaymentTypeFine    PaymentType = "FINE"
)

// PaymentStatus is the settlement state of a payment session.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// Payment is a hosted checkout session opened for a rental.
type Payment struct {
	ID          int64           `json:"id"`
	RentalID    int64           `json:"rentalId"`
	Type        PaymentType     `json:"type"`
	Status      PaymentStatus   `json:"status"`
	SessionURL  string          `json:"sessionUrl"`
	SessionID   string          `json:"sessionId"`
	AmountToPay decimal.Decimal `json:"amountToPay"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CreatePaymentRequest is the validated input for opening a payment session.
type CreatePaymentRequest struct {
	RentalID    int64       `json:"rentalId" validate:"required,gt=0"`
	PaymentType PaymentType `json:"paymentType" validate:"required,oneof=PAYMENT FINE"`
}
