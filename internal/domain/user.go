package domain

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PostalCode string    `json:"postal_code"`
	Prefecture string    `json:"prefecture"`
	City       string    `json:"city"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}
