package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type mockCourseRepo struct {
	courses     map[string]models.Course
	codeTaken   bool
	enrollCount int
	created     *models.Course
	deleted     []string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return m.codeTaken, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "new-course"
	m.created = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) SoftDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCourseRepo) CountEnrollments(ctx context.Context, id string) (int, error) {
	return m.enrollCount, nil
}

type mockEnrollmentRepo struct {
	byUserCourse map[string]models.Enrollment
	activeCount  int
	created      *models.Enrollment
	updated      *models.Enrollment
	deleted      []string
	statusSet    map[string]models.EnrollmentStatus
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if e, ok := m.byUserCourse[userID+"/"+courseID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	return m.activeCount, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "new-enrollment"
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateGrades(ctx context.Context, enrollment *models.Enrollment) error {
	m.updated = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.EnrollmentStatus)
	}
	m.statusSet[id] = status
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTermReader struct {
	terms map[string]models.Term
}

func (m *mockTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func gradingFixture(now time.Time) (*mockCourseRepo, *mockEnrollmentRepo, *mockTermReader, *mockUserReader) {
	courses := &mockCourseRepo{courses: map[string]models.Course{"c1": {
		ID: "c1", Code: "TAC101", TermID: "t1", ManagerID: "m1", EnrollLimit: 2, MidtermWeight: 0.4,
	}}}
	terms := &mockTermReader{terms: map[string]models.Term{"t1": {
		ID:             "t1",
		StartDate:      now.AddDate(0, -1, 0),
		EndDate:        now.AddDate(0, 3, 0),
		RosterDeadline: now.AddDate(0, 0, 7),
		GradeEntryDate: now.AddDate(0, 3, 14),
	}}}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, Active: true},
		"m1": {ID: "m1", Role: models.RoleManager, Active: true},
	}}
	return courses, &mockEnrollmentRepo{}, terms, users
}

func TestCourseServiceEnroll(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now)

	enrollment, err := svc.Enroll(context.Background(), "c1", EnrollRequest{UserID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.NotNil(t, enrollments.created)
}

func TestCourseServiceEnrollAfterDeadline(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now.AddDate(0, 0, 8))

	_, err := svc.Enroll(context.Background(), "c1", EnrollRequest{UserID: "s1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
}

func TestCourseServiceEnrollRejectsNonStudent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now)

	_, err := svc.Enroll(context.Background(), "c1", EnrollRequest{UserID: "m1"})
	require.Error(t, err)
	assert.Nil(t, enrollments.created)
}

func TestCourseServiceEnrollDuplicate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.byUserCourse = map[string]models.Enrollment{"s1/c1": {ID: "e1"}}
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now)

	_, err := svc.Enroll(context.Background(), "c1", EnrollRequest{UserID: "s1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCourseServiceEnrollAtCapacity(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.activeCount = 2
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now)

	_, err := svc.Enroll(context.Background(), "c1", EnrollRequest{UserID: "s1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
}

func TestCourseServiceUpdateGradeBeforeWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.byUserCourse = map[string]models.Enrollment{"s1/c1": {ID: "e1", UserID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}}
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now)

	grade := 8.0
	_, err := svc.UpdateGrade(context.Background(), "c1", "s1", UpdateGradeRequest{MidtermGrade: &grade})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
}

func TestCourseServiceUpdateGradeDerivesTotal(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.byUserCourse = map[string]models.Enrollment{"s1/c1": {ID: "e1", UserID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}}
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now.AddDate(0, 4, 0))

	mid, final := 7.0, 8.5
	enrollment, err := svc.UpdateGrade(context.Background(), "c1", "s1", UpdateGradeRequest{MidtermGrade: &mid, FinalGrade: &final})
	require.NoError(t, err)
	require.NotNil(t, enrollment.TotalGrade)
	// 7*0.4 + 8.5*0.6 = 7.9
	assert.InDelta(t, 7.9, *enrollment.TotalGrade, 0.0001)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
}

func TestCourseServiceGradeFinalFloor(t *testing.T) {
	// A strong midterm cannot rescue a final below the floor.
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.byUserCourse = map[string]models.Enrollment{"s1/c1": {ID: "e1", UserID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}}
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now.AddDate(0, 4, 0))

	mid, final := 10.0, 2.9
	enrollment, err := svc.UpdateGrade(context.Background(), "c1", "s1", UpdateGradeRequest{MidtermGrade: &mid, FinalGrade: &final})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusFailed, enrollment.Status)
}

func TestCourseServiceGradePartialStaysEnrolled(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.byUserCourse = map[string]models.Enrollment{"s1/c1": {ID: "e1", UserID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}}
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now.AddDate(0, 4, 0))

	mid := 6.0
	enrollment, err := svc.UpdateGrade(context.Background(), "c1", "s1", UpdateGradeRequest{MidtermGrade: &mid})
	require.NoError(t, err)
	assert.Nil(t, enrollment.TotalGrade)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
}

func TestDeriveGradeRounding(t *testing.T) {
	mid, final := 5.55, 6.66
	e := &models.Enrollment{MidtermGrade: &mid, FinalGrade: &final}
	deriveGrade(e, 0.5)
	require.NotNil(t, e.TotalGrade)
	// 5.55*0.5 + 6.66*0.5 = 6.105 rounds to 6.11 at two decimals.
	assert.Equal(t, 6.11, *e.TotalGrade)
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
}

func TestDeriveGradeLowTotalFails(t *testing.T) {
	mid, final := 3.0, 4.0
	e := &models.Enrollment{MidtermGrade: &mid, FinalGrade: &final}
	deriveGrade(e, 0.5)
	require.NotNil(t, e.TotalGrade)
	assert.Equal(t, 3.5, *e.TotalGrade)
	assert.Equal(t, models.EnrollmentStatusFailed, e.Status)
}

func TestCourseServiceDeleteBlockedByEnrollments(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	courses.enrollCount = 1
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Empty(t, courses.deleted)
}

func TestCourseServiceUnenrollAfterDeadlineDrops(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	courses, enrollments, terms, users := gradingFixture(now)
	enrollments.byUserCourse = map[string]models.Enrollment{"s1/c1": {ID: "e1", UserID: "s1", CourseID: "c1", Status: models.EnrollmentStatusEnrolled}}
	svc := NewCourseService(courses, enrollments, terms, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(now.AddDate(0, 0, 10))

	require.NoError(t, svc.Unenroll(context.Background(), "c1", "s1"))
	assert.Equal(t, models.EnrollmentStatusDropped, enrollments.statusSet["e1"])
	assert.Empty(t, enrollments.deleted)
}
