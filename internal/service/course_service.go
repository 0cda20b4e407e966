package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

const (
	// finalGradeFloor fails the course outright regardless of the weighted
	// total.
	finalGradeFloor = 3.0
	// passingTotal is the minimum weighted total for completion.
	passingTotal = 4.0
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
	CountEnrollments(ctx context.Context, id string) (int, error)
}

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	CountActiveByCourse(ctx context.Context, courseID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateGrades(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) error
}

// termReader is the slice of the term repository the course rules need.
type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// userReader is the slice of the user repository shared by role checks.
type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateCourseRequest describes payload for creating courses.
type CreateCourseRequest struct {
	Code          string  `json:"code" validate:"required"`
	SubjectName   string  `json:"subject_name" validate:"required"`
	TermID        string  `json:"term_id" validate:"required"`
	ManagerID     string  `json:"manager_id" validate:"required"`
	EnrollLimit   int     `json:"enroll_limit" validate:"gte=0"`
	MidtermWeight float64 `json:"midterm_weight" validate:"gte=0,lte=1"`
}

// UpdateCourseRequest updates mutable fields on a course.
type UpdateCourseRequest struct {
	Code          string  `json:"code" validate:"required"`
	SubjectName   string  `json:"subject_name" validate:"required"`
	ManagerID     string  `json:"manager_id" validate:"required"`
	EnrollLimit   int     `json:"enroll_limit" validate:"gte=0"`
	MidtermWeight float64 `json:"midterm_weight" validate:"gte=0,lte=1"`
}

// EnrollRequest enrolls one student into a course.
type EnrollRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// UpdateGradeRequest records midterm and/or final grades for an enrollment.
// Grades use the canonical 0-10 scale.
type UpdateGradeRequest struct {
	MidtermGrade *float64 `json:"midterm_grade" validate:"omitempty,gte=0,lte=10"`
	FinalGrade   *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=10"`
	Notes        *string  `json:"notes"`
}

// CourseService manages courses, enrollment gates and grade derivation.
type CourseService struct {
	courses     courseRepository
	enrollments enrollmentRepository
	terms       termReader
	users       userReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCourseService creates a new course service instance.
func NewCourseService(courses courseRepository, enrollments enrollmentRepository, terms termReader, users userReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:     courses,
		enrollments: enrollments,
		terms:       terms,
		users:       users,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) requireManager(ctx context.Context, managerID string) error {
	manager, err := s.users.FindByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "manager not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
	}
	if manager.Role != models.RoleManager {
		return appErrors.Clone(appErrors.ErrBusinessRule, "manager_id must reference a user with the manager role")
	}
	return nil
}

// Create adds a new course bound to a term and a managing officer.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if _, err := s.terms.FindByID(ctx, req.TermID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if err := s.requireManager(ctx, req.ManagerID); err != nil {
		return nil, err
	}

	exists, err := s.courses.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s is already in use", req.Code))
	}

	course := &models.Course{
		Code:          req.Code,
		SubjectName:   req.SubjectName,
		TermID:        req.TermID,
		ManagerID:     req.ManagerID,
		EnrollLimit:   req.EnrollLimit,
		MidtermWeight: req.MidtermWeight,
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies an existing course. The owning term is immutable.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, req.ManagerID); err != nil {
		return nil, err
	}

	if req.Code != course.Code {
		exists, err := s.courses.ExistsByCode(ctx, req.Code, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s is already in use", req.Code))
		}
	}

	course.Code = req.Code
	course.SubjectName = req.SubjectName
	course.ManagerID = req.ManagerID
	course.EnrollLimit = req.EnrollLimit
	course.MidtermWeight = req.MidtermWeight

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete soft-deletes a course once no enrollment references it.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.courses.CountEnrollments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "course has enrollments associated")
	}

	if err := s.courses.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// ListEnrollments returns paginated enrollment details.
func (s *CourseService) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Enroll registers a student into a course. Every gate must pass: the term's
// roster deadline has not passed, the user holds the student role, the student
// is not already enrolled, and capacity remains.
func (s *CourseService) Enroll(ctx context.Context, courseID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}

	term, err := s.terms.FindByID(ctx, course.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if s.now().After(term.RosterDeadline) {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "enrollment period for this term has ended")
	}

	student, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "only students can enroll in courses")
	}

	if _, err := s.enrollments.FindByUserAndCourse(ctx, req.UserID, courseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	if course.EnrollLimit > 0 {
		active, err := s.enrollments.CountActiveByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course capacity")
		}
		if active >= course.EnrollLimit {
			return nil, appErrors.Clone(appErrors.ErrBusinessRule, "course enrollment limit reached")
		}
	}

	enrollment := &models.Enrollment{
		UserID:   req.UserID,
		CourseID: courseID,
		Status:   models.EnrollmentStatusEnrolled,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Unenroll drops a student from a course before the roster deadline; after it,
// the enrollment is marked DROPPED instead of being removed.
func (s *CourseService) Unenroll(ctx context.Context, courseID, userID string) error {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return err
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	term, err := s.terms.FindByID(ctx, course.TermID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	if s.now().After(term.RosterDeadline) {
		if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusDropped); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
		return nil
	}

	if err := s.enrollments.Delete(ctx, enrollment.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	return nil
}

// UpdateGrade records grades for one enrollment once the term's grade entry
// window has opened, then derives the total and the completion status.
func (s *CourseService) UpdateGrade(ctx context.Context, courseID, userID string, req UpdateGradeRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}

	term, err := s.terms.FindByID(ctx, course.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if s.now().Before(term.GradeEntryDate) {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "grade entry period has not started for this term")
	}

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "cannot grade a dropped enrollment")
	}

	if req.MidtermGrade != nil {
		enrollment.MidtermGrade = req.MidtermGrade
	}
	if req.FinalGrade != nil {
		enrollment.FinalGrade = req.FinalGrade
	}
	if req.Notes != nil {
		enrollment.Notes = *req.Notes
	}
	deriveGrade(enrollment, course.MidtermWeight)

	if err := s.enrollments.UpdateGrades(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}
	return enrollment, nil
}

// deriveGrade recomputes the weighted total and the resulting status. With a
// grade still missing the total stays unset and the enrollment remains open.
// A final below the floor fails the course regardless of the total.
func deriveGrade(e *models.Enrollment, midtermWeight float64) {
	if e.MidtermGrade == nil || e.FinalGrade == nil {
		e.TotalGrade = nil
		e.Status = models.EnrollmentStatusEnrolled
		return
	}

	total := round2(*e.MidtermGrade*midtermWeight + *e.FinalGrade*(1-midtermWeight))
	e.TotalGrade = &total

	switch {
	case *e.FinalGrade < finalGradeFloor:
		e.Status = models.EnrollmentStatusFailed
	case total < passingTotal:
		e.Status = models.EnrollmentStatusFailed
	default:
		e.Status = models.EnrollmentStatusCompleted
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
