package models

import "time"

// ViolationRecord documents a discipline violation. Only the recording
// manager may edit or delete it, and only within a day of creation.
type ViolationRecord struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	ManagerID     string    `db:"manager_id" json:"manager_id"`
	ViolationName string    `db:"violation_name" json:"violation_name"`
	ViolationDate time.Time `db:"violation_date" json:"violation_date"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ViolationFilter defines filters for listing violations.
type ViolationFilter struct {
	StudentID string
	ManagerID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
