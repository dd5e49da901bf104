package domain

import "time"

type ParentCategory struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type ChildCategory struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

// Dress is a sellable product. Price is in yen; Stock never goes
// negative (enforced by the inventory ledger and a DB check).
type Dress struct {
	ID              string    `json:"id"`
	ChildCategoryID string    `json:"child_category_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	Stock           int       `json:"stock"`
	CreatedAt       time.Time `json:"created_at"`
}

func (d Dress) InStock() bool {
	return d.Stock > 0
}
