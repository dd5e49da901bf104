package payments

import (
	"context"
	"database/sql"

	"github.com/teamf/dresshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// linkedOrder identifies the order a payment belongs to. Payments and
// orders are created together, so a missing link means the payment id
// is stale.
type linkedOrder struct {
	OrderID string
	UserID  string
}

func scanPayment(row *sql.Row, p *domain.Payment, link *linkedOrder) error {
	var ref sql.NullString
	err := row.Scan(&p.ID, &p.Amount, &p.Status, &p.Method, &ref, &p.PaidAt, &link.OrderID, &link.UserID)
	if err != nil {
		return err
	}
	p.TransactionRef = ref.String
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Payment, *linkedOrder, error) {
	p := &domain.Payment{}
	link := &linkedOrder{}

	err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT p.id, p.amount, p.status, p.method, p.transaction_ref, p.paid_at, o.id, o.user_id
		FROM payments p
		JOIN orders o ON o.payment_id = p.id
		WHERE p.id = $1
	`, id), p, link)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}

	return p, link, nil
}

// getForUpdate locks the payment row so concurrent confirmations and
// refunds of the same payment serialize.
func getForUpdate(ctx context.Context, tx dbtx, id string) (*domain.Payment, *linkedOrder, error) {
	p := &domain.Payment{}
	link := &linkedOrder{}

	err := scanPayment(tx.QueryRowContext(ctx, `
		SELECT p.id, p.amount, p.status, p.method, p.transaction_ref, p.paid_at, o.id, o.user_id
		FROM payments p
		JOIN orders o ON o.payment_id = p.id
		WHERE p.id = $1
		FOR UPDATE OF p
	`, id), p, link)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}

	return p, link, nil
}

func save(ctx context.Context, tx dbtx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, transaction_ref = NULLIF($3, ''), paid_at = $4
		WHERE id = $1
	`, p.ID, p.Status, p.TransactionRef, p.PaidAt)
	return err
}

// ListFilter narrows the admin payment listing.
type ListFilter struct {
	Status domain.PaymentStatus
	Method domain.PaymentMethod
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.Payment, error) {
	query := `
		SELECT id, amount, status, method, transaction_ref, paid_at
		FROM payments
		WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $1`
	}
	if filter.Method != "" {
		args = append(args, filter.Method)
		if len(args) == 1 {
			query += ` AND method = $1`
		} else {
			query += ` AND method = $2`
		}
	}
	query += ` ORDER BY paid_at DESC NULLS LAST, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	payments := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		var ref sql.NullString
		if err := rows.Scan(&p.ID, &p.Amount, &p.Status, &p.Method, &ref, &p.PaidAt); err != nil {
			return nil, err
		}
		p.TransactionRef = ref.String
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}
