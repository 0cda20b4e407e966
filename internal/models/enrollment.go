package models

import "time"

// EnrollmentStatus tracks the outcome of a student's course enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusFailed    EnrollmentStatus = "FAILED"
)

// Enrollment links a student to a course with graded outcomes. Grades are on
// the 0-10 scale; TotalGrade is derived whenever both grades are present.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	UserID       string           `db:"user_id" json:"user_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	MidtermGrade *float64         `db:"midterm_grade" json:"midterm_grade,omitempty"`
	FinalGrade   *float64         `db:"final_grade" json:"final_grade,omitempty"`
	TotalGrade   *float64         `db:"total_grade" json:"total_grade,omitempty"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	Notes        string           `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail joins an enrollment with student and course display fields.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// EnrollmentFilter defines filters supported by enrollment list endpoints.
type EnrollmentFilter struct {
	UserID   string
	CourseID string
	Status   EnrollmentStatus
	Page     int
	PageSize int
}
