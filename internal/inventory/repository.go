package inventory

import (
	"context"
	"database/sql"
)

// StockLevel is the admin view of a dress's remaining inventory.
type StockLevel struct {
	DressID string `json:"dress_id"`
	Name    string `json:"name"`
	Stock   int    `json:"stock"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListStock(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, stock
		FROM dresses
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var levels []StockLevel
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.DressID, &level.Name, &level.Stock); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

func (r *Repository) GetStock(ctx context.Context, dressID string) (*StockLevel, error) {
	level := &StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, stock
		FROM dresses
		WHERE id = $1
	`, dressID).Scan(&level.DressID, &level.Name, &level.Stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return level, nil
}
