package models

import "time"

// Term models an academic term with its enrollment and grading windows.
// Names follow the "2024A" convention: four-digit year plus one uppercase
// letter. RosterDeadline closes enrollment; GradeEntryDate opens grading.
type Term struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        time.Time  `db:"end_date" json:"end_date"`
	RosterDeadline time.Time  `db:"roster_deadline" json:"roster_deadline"`
	GradeEntryDate time.Time  `db:"grade_entry_date" json:"grade_entry_date"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	Name      string
	Year      string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
