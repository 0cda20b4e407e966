package models

import "time"

// MonthlyAllowance is one student's stipend for a (month, year) pair.
// Unique per (user, month, year).
type MonthlyAllowance struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Month      int        `db:"month" json:"month"`
	Year       int        `db:"year" json:"year"`
	Amount     float64    `db:"amount" json:"amount"`
	Received   bool       `db:"received" json:"received"`
	ReceivedAt *time.Time `db:"received_at" json:"received_at,omitempty"`
	Notes      string     `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// AllowanceFilter defines filters for allowance listing.
type AllowanceFilter struct {
	UserID   string
	Month    int
	Year     int
	Received *bool
	Page     int
	PageSize int
}
