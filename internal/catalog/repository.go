package catalog

import (
	"context"
	"database/sql"
	"fmt"
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

// DressFilter narrows the public listing. Zero values mean no filter.
type DressFilter struct {
	ChildCategoryID string
	MinPrice        int64
	MaxPrice        int64
	InStockOnly     bool
	Limit           int
	Offset          int
}

func (r *Repository) ListDresses(ctx context.Context, filter DressFilter) ([]domain.Dress, error) {
	query := `
		SELECT id, child_category_id, name, description, price, stock, created_at
		FROM dresses
		WHERE 1=1`
	var args []any

	if filter.ChildCategoryID != "" {
		args = append(args, filter.ChildCategoryID)
		query += fmt.Sprintf(" AND child_category_id = $%d", len(args))
	}
	if filter.MinPrice > 0 {
		args = append(args, filter.MinPrice)
		query += fmt.Sprintf(" AND price >= $%d", len(args))
	}
	if filter.MaxPrice > 0 {
		args = append(args, filter.MaxPrice)
		query += fmt.Sprintf(" AND price <= $%d", len(args))
	}
	if filter.InStockOnly {
		query += " AND stock > 0"
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	dresses := []domain.Dress{}
	for rows.Next() {
		var d domain.Dress
		if err := rows.Scan(&d.ID, &d.ChildCategoryID, &d.Name, &d.Description, &d.Price, &d.Stock, &d.CreatedAt); err != nil {
			return nil, err
		}
		dresses = append(dresses, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dresses, nil
}

func (r *Repository) GetDress(ctx context.Context, id string) (*domain.Dress, error) {
	d := &domain.Dress{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, child_category_id, name, description, price, stock, created_at
		FROM dresses
		WHERE id = $1
	`, id).Scan(&d.ID, &d.ChildCategoryID, &d.Name, &d.Description, &d.Price, &d.Stock, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return d, nil
}

func (r *Repository) CreateDress(ctx context.Context, d *domain.Dress) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dresses (id, child_category_id, name, description, price, stock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.ChildCategoryID, d.Name, d.Description, d.Price, d.Stock, d.CreatedAt)
	return err
}

// UpdateDress rewrites the descriptive fields. Stock is owned by the
// inventory ledger and is not touched here.
func (r *Repository) UpdateDress(ctx context.Context, d *domain.Dress) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE dresses
		SET child_category_id = $2, name = $3, description = $4, price = $5
		WHERE id = $1
	`, d.ID, d.ChildCategoryID, d.Name, d.Description, d.Price)
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

// DeleteDress refuses while order items still reference the dress so
// order history keeps resolving.
func (r *Repository) DeleteDress(ctx context.Context, id string) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_items WHERE dress_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return domain.NewValidationError("id", "dress is referenced by existing orders")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM dresses WHERE id = $1`, id)
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

func (r *Repository) ListParentCategories(ctx context.Context) ([]domain.ParentCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, sort_order
		FROM parent_categories
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.ParentCategory{}
	for rows.Next() {
		var c domain.ParentCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *Repository) ListChildCategories(ctx context.Context, parentID string, activeOnly bool) ([]domain.ChildCategory, error) {
	query := `
		SELECT id, parent_id, name, sort_order, active
		FROM child_categories
		WHERE 1=1`
	var args []any

	if parentID != "" {
		args = append(args, parentID)
		query += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY sort_order, name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.ChildCategory{}
	for rows.Next() {
		var c domain.ChildCategory
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.SortOrder, &c.Active); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *Repository) CreateParentCategory(ctx context.Context, c *domain.ParentCategory) error {
	c.ID = uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO parent_categories (id, name, sort_order)
		VALUES ($1, $2, $3)
	`, c.ID, c.Name, c.SortOrder)
	return err
}

func (r *Repository) CreateChildCategory(ctx context.Context, c *domain.ChildCategory) error {
	c.ID = uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO child_categories (id, parent_id, name, sort_order, active)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.ParentID, c.Name, c.SortOrder, c.Active)
	return err
}

func (r *Repository) DeleteChildCategory(ctx context.Context, id string) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM dresses WHERE child_category_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return domain.NewValidationError("id", "category still has dresses")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM child_categories WHERE id = $1`, id)
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
