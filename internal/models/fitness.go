package models

import "time"

// FitnessRating is the qualitative classification of a performance value.
type FitnessRating string

const (
	RatingExcellent FitnessRating = "EXCELLENT"
	RatingGood      FitnessRating = "GOOD"
	RatingPass      FitnessRating = "PASS"
	RatingFail      FitnessRating = "FAIL"
)

// FitnessTest describes a measurable exercise. HigherIsBetter selects the
// comparison direction when classifying performances against thresholds.
type FitnessTest struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Unit           string     `db:"unit" json:"unit"`
	HigherIsBetter bool       `db:"higher_is_better" json:"higher_is_better"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	Threshold *FitnessTestThreshold `db:"-" json:"threshold,omitempty"`
}

// FitnessTestThreshold holds the boundary values for one test. When
// HigherIsBetter the ordering is excellent >= good >= pass, inverted otherwise.
type FitnessTestThreshold struct {
	ID                 string    `db:"id" json:"id"`
	FitnessTestID      string    `db:"fitness_test_id" json:"fitness_test_id"`
	ExcellentThreshold float64   `db:"excellent_threshold" json:"excellent_threshold"`
	GoodThreshold      float64   `db:"good_threshold" json:"good_threshold"`
	PassThreshold      float64   `db:"pass_threshold" json:"pass_threshold"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// FitnessAssessmentSession is the calendar-week bucket grouping records.
// WeekStartDate is a Monday, WeekEndDate the following Sunday.
type FitnessAssessmentSession struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	WeekStartDate time.Time `db:"week_start_date" json:"week_start_date"`
	WeekEndDate   time.Time `db:"week_end_date" json:"week_end_date"`
	Notes         string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFitnessRecord stores one student's measured performance for one test
// within one session. Unique per (user, test, session).
type StudentFitnessRecord struct {
	ID                  string        `db:"id" json:"id"`
	UserID              string        `db:"user_id" json:"user_id"`
	ManagerID           string        `db:"manager_id" json:"manager_id"`
	FitnessTestID       string        `db:"fitness_test_id" json:"fitness_test_id"`
	AssessmentSessionID string        `db:"assessment_session_id" json:"assessment_session_id"`
	Performance         float64       `db:"performance" json:"performance"`
	Rating              FitnessRating `db:"rating" json:"rating"`
	Notes               string        `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// FitnessRecordFilter defines filters for listing fitness records.
type FitnessRecordFilter struct {
	UserID    string
	TestID    string
	SessionID string
	Page      int
	PageSize  int
}
