package models

import "time"

// DashboardSummary is the cached admin overview snapshot.
type DashboardSummary struct {
	TotalStudents      int       `json:"total_students"`
	TotalManagers      int       `json:"total_managers"`
	TotalCourses       int       `json:"total_courses"`
	ActiveTerm         *Term     `json:"active_term,omitempty"`
	ActiveEnrollments  int       `json:"active_enrollments"`
	RecentViolations   int       `json:"recent_violations"`
	FitnessRecordsWeek int       `json:"fitness_records_week"`
	GeneratedAt        time.Time `json:"generated_at"`
}
