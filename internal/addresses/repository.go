package addresses

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teamf/dresshop/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, postal_code, prefecture, city, line1, COALESCE(line2, ''), is_default, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	addresses := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.PostalCode, &a.Prefecture, &a.City, &a.Line1, &a.Line2, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return addresses, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Address, error) {
	a := &domain.Address{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, postal_code, prefecture, city, line1, COALESCE(line2, ''), is_default, created_at
		FROM addresses
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.PostalCode, &a.Prefecture, &a.City, &a.Line1, &a.Line2, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return a, nil
}

func (r *Repository) Create(ctx context.Context, a *domain.Address) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if a.IsDefault {
		if _, err := tx.ExecContext(ctx, `
			UPDATE addresses SET is_default = FALSE WHERE user_id = $1
		`, a.UserID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, postal_code, prefecture, city, line1, line2, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
	`, a.ID, a.UserID, a.PostalCode, a.Prefecture, a.City, a.Line1, a.Line2, a.IsDefault, a.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) Update(ctx context.Context, a *domain.Address) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE addresses
		SET postal_code = $2, prefecture = $3, city = $4, line1 = $5, line2 = NULLIF($6, '')
		WHERE id = $1
	`, a.ID, a.PostalCode, a.Prefecture, a.City, a.Line1, a.Line2)
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

// SetDefault flips the default flag, clearing siblings in the same
// transaction so at most one default survives per user.
func (r *Repository) SetDefault(ctx context.Context, userID, addressID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND id <> $2
	`, userID, addressID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE addresses SET is_default = TRUE WHERE user_id = $1 AND id = $2
	`, userID, addressID)
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

	return tx.Commit()
}

// Delete refuses while orders still reference the address.
func (r *Repository) Delete(ctx context.Context, id string) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE address_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return domain.NewValidationError("id", "address is used by existing orders")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
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
