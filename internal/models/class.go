package models

import "time"

// ClassRole is the leadership role a student holds inside a class.
type ClassRole string

const (
	ClassRoleMonitor     ClassRole = "MONITOR"
	ClassRoleViceMonitor ClassRole = "VICE_MONITOR"
	ClassRoleStudent     ClassRole = "STUDENT"
)

// MembershipStatus tracks whether a class membership is in good standing.
type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "ACTIVE"
	MembershipStatusSuspended MembershipStatus = "SUSPENDED"
)

// ClassRoom groups students under at most one manager.
type ClassRoom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ManagerID *string   `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentClass is a student's membership in a class. A student belongs to at
// most one class; each class has at most one monitor.
type StudentClass struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Role      ClassRole        `db:"role" json:"role"`
	Status    MembershipStatus `db:"status" json:"status"`
	Reason    string           `db:"reason" json:"reason,omitempty"`
	Note      string           `db:"note" json:"note,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// StudentClassDetail joins a membership with the student's display fields.
type StudentClassDetail struct {
	StudentClass
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}
