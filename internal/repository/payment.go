package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/carsharing/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `p.id, p.rental_id, p.type, p.status, p.session_url, p.session_id, p.amount_to_pay::text, p.created_at`

// PaymentRepository handles database operations for payments.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment and fills in its generated ID.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (rental_id, type, status, session_url, session_id, amount_to_pay, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := conn(ctx, r.db).QueryRow(ctx, query,
		p.RentalID, string(p.Type), string(p.Status), p.SessionURL, p.SessionID,
		p.AmountToPay.String(), p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// FindBySessionID returns the payment opened for a gateway session.
func (r *PaymentRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.session_id = $1 AND p.is_deleted = FALSE`
	p, err := scanPayment(conn(ctx, r.db).QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return p, nil
}

// MarkPaid moves a PENDING payment to PAID. It reports false when the
// payment was not PENDING, so only one caller wins the transition.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id int64) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2 AND status = $3`,
		string(domain.PaymentPaid), id, string(domain.PaymentPending))
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAll returns one page of every payment.
func (r *PaymentRepository) ListAll(ctx context.Context, page domain.PageRequest) ([]*domain.Payment, int64, error) {
	return r.list(ctx, page,
		`SELECT COUNT(*) FROM payments p WHERE p.is_deleted = FALSE`,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.is_deleted = FALSE ORDER BY p.id DESC LIMIT $1 OFFSET $2`,
	)
}

// ListByUser returns one page of payments for rentals owned by userID.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, page domain.PageRequest) ([]*domain.Payment, int64, error) {
	return r.list(ctx, page,
		`SELECT COUNT(*) FROM payments p JOIN rentals r ON r.id = p.rental_id
		 WHERE r.user_id = $1 AND p.is_deleted = FALSE`,
		`SELECT `+paymentColumns+` FROM payments p JOIN rentals r ON r.id = p.rental_id
		 WHERE r.user_id = $3 AND p.is_deleted = FALSE ORDER BY p.id DESC LIMIT $1 OFFSET $2`,
		userID,
	)
}

func (r *PaymentRepository) list(ctx context.Context, page domain.PageRequest, countQuery, query string, args ...any) ([]*domain.Payment, int64, error) {
	db := conn(ctx, r.db)

	var total int64
	if err := db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	rows, err := db.Query(ctx, query, append([]any{page.Limit, page.Offset()}, args...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p          domain.Payment
		ptype      string
		status     string
		amountText string
	)
	if err := row.Scan(&p.ID, &p.RentalID, &ptype, &status, &p.SessionURL, &p.SessionID, &amountText, &p.CreatedAt); err != nil {
		return nil, err
	}
	amount, err := parseMoney(amountText)
	if err != nil {
		return nil, err
	}
	p.Type = domain.PaymentType(ptype)
	p.Status = domain.PaymentStatus(status)
	p.AmountToPay = amount
	return &p, nil
}
