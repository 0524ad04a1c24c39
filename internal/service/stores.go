package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carsharing/backend/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Storage capabilities consumed by the services. The pgx repositories in
// internal/repository implement them.

type VehicleStore interface {
	Create(ctx context.Context, v *domain.Vehicle) error
	FindByID(ctx context.Context, id int64) (*domain.Vehicle, error)
	List(ctx context.Context, page domain.PageRequest) ([]*domain.Vehicle, int64, error)
	Update(ctx context.Context, v *domain.Vehicle) error
	SoftDelete(ctx context.Context, id int64) (bool, error)
	LockInventory(ctx context.Context, id int64) (inventory int, found bool, err error)
	AdjustInventory(ctx context.Context, id int64, delta int) error
}

type RentalStore interface {
	Create(ctx context.Context, r *domain.Rental) error
	FindByID(ctx context.Context, id int64) (*domain.Rental, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Rental, error)
	FindByUserAndID(ctx context.Context, userID string, id int64) (*domain.Rental, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Rental, error)
	SetActualReturnDate(ctx context.Context, id int64, date time.Time) error
	ListOverdue(ctx context.Context, today time.Time) ([]*domain.Rental, error)
	ListNonOverdue(ctx context.Context, today time.Time) ([]*domain.Rental, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)
	MarkPaid(ctx context.Context, id int64) (bool, error)
	ListAll(ctx context.Context, page domain.PageRequest) ([]*domain.Payment, int64, error)
	ListByUser(ctx context.Context, userID string, page domain.PageRequest) ([]*domain.Payment, int64, error)
}

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	SetTelegramChatID(ctx context.Context, id string, chatID int64) error
}

// Transactor runs fn as one all-or-nothing unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Dispatcher reports state transitions to users. Every method is invoked
// after the triggering change has committed.
type Dispatcher interface {
	RentalCreated(ctx context.Context, n domain.RentalNotice) error
	RentalReturned(ctx context.Context, n domain.RentalNotice) error
	RentalOverdue(ctx context.Context, n domain.RentalNotice) error
	NoOverdueRentals(ctx context.Context, userID string) error
	PaymentSucceeded(ctx context.Context, userID string) error
	PaymentCancelled(ctx context.Context, userID string) error
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed on '"+fe.Tag()+"'")
	}
	return strings.Join(msgs, "; ")
}
