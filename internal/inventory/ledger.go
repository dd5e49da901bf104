// Package inventory is the only code path allowed to mutate dress
// stock. Decreases are conditional at the storage layer so concurrent
// checkouts can never drive stock negative.
package inventory

import (
	"context"
	"database/sql"

	"github.com/teamf/dresshop/internal/domain"
)

// execer is satisfied by *sql.DB and *sql.Tx, letting ledger operations
// compose into the checkout and cancellation transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Decrease deducts qty from the dress's stock only if enough remains.
// The WHERE clause is the authority: under concurrent checkouts the
// database serializes the conditional updates, so overselling is
// impossible regardless of what any earlier read saw.
func (l *Ledger) Decrease(ctx context.Context, tx execer, dressID string, qty int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE dresses
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, dressID, qty)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Re-read for the error payload; the update already refused.
		var name string
		var available int
		err := tx.QueryRowContext(ctx, `
			SELECT name, stock FROM dresses WHERE id = $1
		`, dressID).Scan(&name, &available)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{
			DressID:   dressID,
			DressName: name,
			Requested: qty,
			Available: available,
		}
	}

	return nil
}

// Increase returns qty to stock, used on cancellation and refund. No
// upper bound is enforced.
func (l *Ledger) Increase(ctx context.Context, tx execer, dressID string, qty int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE dresses
		SET stock = stock + $2
		WHERE id = $1
	`, dressID, qty)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
