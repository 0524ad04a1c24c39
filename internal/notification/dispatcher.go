package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/carsharing/backend/internal/domain"
)

const (
	msgNoOverdue        = "✅ No rentals overdue today!"
	msgPaymentSucceeded = "✅ Payment was successful!"
	msgPaymentCancelled = "🚨 Payment was cancelled!"
)

// Dispatcher renders rental and payment events into messages and hands them
// to a Notifier.
type Dispatcher struct {
	notifier Notifier
}

func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{notifier: n}
}

func (d *Dispatcher) RentalCreated(ctx context.Context, n domain.RentalNotice) error {
	msg := fmt.Sprintf("🚗 New Rental Created!\n\nUser: %s\nCar: %s %s\nStart Date: %s\nEnd Date: %s",
		displayName(n.User), n.Vehicle.Brand, n.Vehicle.Model,
		formatDate(n.Rental.RentalDate), formatDate(n.Rental.ReturnDate))
	return d.notifier.Notify(ctx, n.User.ID, msg)
}

func (d *Dispatcher) RentalReturned(ctx context.Context, n domain.RentalNotice) error {
	returned := "-"
	if n.Rental.ActualReturnDate != nil {
		returned = formatDate(*n.Rental.ActualReturnDate)
	}
	msg := fmt.Sprintf("🚗 Rental Returned:\n\nUser: %s\nCar: %s %s\nStart Date: %s\nEnd Date: %s\nReturn Date: %s",
		displayName(n.User), n.Vehicle.Brand, n.Vehicle.Model,
		formatDate(n.Rental.RentalDate), formatDate(n.Rental.ReturnDate), returned)
	return d.notifier.Notify(ctx, n.User.ID, msg)
}

func (d *Dispatcher) RentalOverdue(ctx context.Context, n domain.RentalNotice) error {
	msg := fmt.Sprintf("🚨 Overdue Rental Alert!\n\nUser: %s\nCar: %s %s\nOriginal Return Date: %s\nRental Date: %s\nPlease return the car.",
		displayName(n.User), n.Vehicle.Brand, n.Vehicle.Model,
		formatDate(n.Rental.ReturnDate), formatDate(n.Rental.RentalDate))
	return d.notifier.Notify(ctx, n.User.ID, msg)
}

func (d *Dispatcher) NoOverdueRentals(ctx context.Context, userID string) error {
	return d.notifier.Notify(ctx, userID, msgNoOverdue)
}

func (d *Dispatcher) PaymentSucceeded(ctx context.Context, userID string) error {
	return d.notifier.Notify(ctx, userID, msgPaymentSucceeded)
}

func (d *Dispatcher) PaymentCancelled(ctx context.Context, userID string) error {
	return d.notifier.Notify(ctx, userID, msgPaymentCancelled)
}

func displayName(u *domain.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
