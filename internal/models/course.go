package models

import "time"

// Course is a subject offering bound to exactly one term and run by a manager.
// MidtermWeight is the fraction of the total grade carried by the midterm.
type Course struct {
	ID            string     `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	SubjectName   string     `db:"subject_name" json:"subject_name"`
	TermID        string     `db:"term_id" json:"term_id"`
	ManagerID     string     `db:"manager_id" json:"manager_id"`
	EnrollLimit   int        `db:"enroll_limit" json:"enroll_limit"`
	MidtermWeight float64    `db:"midterm_weight" json:"midterm_weight"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter defines filters supported by course list endpoints.
type CourseFilter struct {
	TermID    string
	ManagerID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
