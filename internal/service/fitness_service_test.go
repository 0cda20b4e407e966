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

type mockFitnessTestRepo struct {
	tests       map[string]models.FitnessTest
	recordCount int
	created     *models.FitnessTest
	deleted     []string
}

func (m *mockFitnessTestRepo) List(ctx context.Context) ([]models.FitnessTest, error) {
	return nil, nil
}

func (m *mockFitnessTestRepo) FindByID(ctx context.Context, id string) (*models.FitnessTest, error) {
	if t, ok := m.tests[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFitnessTestRepo) Create(ctx context.Context, test *models.FitnessTest, threshold *models.FitnessTestThreshold) error {
	test.ID = "new-test"
	test.Threshold = threshold
	m.created = test
	return nil
}

func (m *mockFitnessTestRepo) Update(ctx context.Context, test *models.FitnessTest) error {
	return nil
}

func (m *mockFitnessTestRepo) UpsertThreshold(ctx context.Context, threshold *models.FitnessTestThreshold) error {
	return nil
}

func (m *mockFitnessTestRepo) SoftDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockFitnessTestRepo) CountRecords(ctx context.Context, testID string) (int, error) {
	return m.recordCount, nil
}

type mockSessionRepo struct {
	sessions map[string]models.FitnessAssessmentSession
	byWeek   *models.FitnessAssessmentSession
	created  *models.FitnessAssessmentSession
}

func (m *mockSessionRepo) List(ctx context.Context) ([]models.FitnessAssessmentSession, error) {
	return nil, nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.FitnessAssessmentSession, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) FindByWeek(ctx context.Context, weekStart, weekEnd time.Time) (*models.FitnessAssessmentSession, error) {
	if m.byWeek != nil {
		return m.byWeek, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.FitnessAssessmentSession) error {
	session.ID = "new-session"
	m.created = session
	return nil
}

type mockFitnessRecordRepo struct {
	byKey    map[string]models.StudentFitnessRecord
	existing []string
	created  *models.StudentFitnessRecord
	batch    []*models.StudentFitnessRecord
}

func (m *mockFitnessRecordRepo) List(ctx context.Context, filter models.FitnessRecordFilter) ([]models.StudentFitnessRecord, int, error) {
	return nil, 0, nil
}

func (m *mockFitnessRecordRepo) FindByKey(ctx context.Context, userID, testID, sessionID string) (*models.StudentFitnessRecord, error) {
	if r, ok := m.byKey[userID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFitnessRecordRepo) ExistingUserIDs(ctx context.Context, testID, sessionID string, userIDs []string) ([]string, error) {
	return m.existing, nil
}

func (m *mockFitnessRecordRepo) Create(ctx context.Context, record *models.StudentFitnessRecord) error {
	record.ID = "new-record"
	m.created = record
	return nil
}

func (m *mockFitnessRecordRepo) CreateBatch(ctx context.Context, records []*models.StudentFitnessRecord) error {
	m.batch = records
	return nil
}

func (m *mockFitnessRecordRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func runUpTest() models.FitnessTest {
	return models.FitnessTest{
		ID:             "run",
		Name:           "3000m run",
		Unit:           "seconds",
		HigherIsBetter: false,
		Threshold: &models.FitnessTestThreshold{
			ExcellentThreshold: 780,
			GoodThreshold:      840,
			PassThreshold:      900,
		},
	}
}

func pushUpTest() models.FitnessTest {
	return models.FitnessTest{
		ID:             "pushups",
		Name:           "Push-ups",
		Unit:           "reps",
		HigherIsBetter: true,
		Threshold: &models.FitnessTestThreshold{
			ExcellentThreshold: 50,
			GoodThreshold:      40,
			PassThreshold:      30,
		},
	}
}

func TestDetermineRatingHigherIsBetter(t *testing.T) {
	test := pushUpTest()
	cases := []struct {
		performance float64
		want        models.FitnessRating
	}{
		{55, models.RatingExcellent},
		{50, models.RatingExcellent}, // boundary is inclusive
		{45, models.RatingGood},
		{40, models.RatingGood},
		{30, models.RatingPass},
		{29.9, models.RatingFail},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetermineRating(&test, tc.performance), "performance %v", tc.performance)
	}
}

func TestDetermineRatingLowerIsBetter(t *testing.T) {
	test := runUpTest()
	cases := []struct {
		performance float64
		want        models.FitnessRating
	}{
		{700, models.RatingExcellent},
		{780, models.RatingExcellent},
		{800, models.RatingGood},
		{900, models.RatingPass},
		{901, models.RatingFail},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetermineRating(&test, tc.performance), "performance %v", tc.performance)
	}
}

func TestDetermineRatingWithoutThresholds(t *testing.T) {
	test := pushUpTest()
	test.Threshold = nil
	assert.Equal(t, models.RatingFail, DetermineRating(&test, 100))
}

func TestCreateTestRejectsBadThresholdOrder(t *testing.T) {
	svc := NewFitnessService(&mockFitnessTestRepo{}, &mockSessionRepo{}, &mockFitnessRecordRepo{}, &mockUserReader{}, validator.New(), zap.NewNop())

	_, err := svc.CreateTest(context.Background(), CreateFitnessTestRequest{
		Name:               "Push-ups",
		Unit:               "reps",
		HigherIsBetter:     true,
		ExcellentThreshold: 30,
		GoodThreshold:      40,
		PassThreshold:      50,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	fields, ok := appErr.Details["fields"].([]string)
	require.True(t, ok)
	assert.Len(t, fields, 2)
}

func TestCurrentWeekSessionCreatesOnFirstUse(t *testing.T) {
	sessions := &mockSessionRepo{}
	svc := NewFitnessService(&mockFitnessTestRepo{}, sessions, &mockFitnessRecordRepo{}, &mockUserReader{}, validator.New(), zap.NewNop())
	// Wednesday 2025-03-05, ISO week 10.
	svc.now = fixedClock(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))

	session, err := svc.CurrentWeekSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sessions.created)
	assert.Equal(t, "Week 10 – March/2025", session.Name)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), session.WeekStartDate)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), session.WeekEndDate)
}

func TestCurrentWeekSessionReusesExisting(t *testing.T) {
	existing := &models.FitnessAssessmentSession{ID: "s-week"}
	sessions := &mockSessionRepo{byWeek: existing}
	svc := NewFitnessService(&mockFitnessTestRepo{}, sessions, &mockFitnessRecordRepo{}, &mockUserReader{}, validator.New(), zap.NewNop())

	session, err := svc.CurrentWeekSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-week", session.ID)
	assert.Nil(t, sessions.created)
}

func fitnessFixture() (*mockFitnessTestRepo, *mockSessionRepo, *mockFitnessRecordRepo, *mockUserReader) {
	tests := &mockFitnessTestRepo{tests: map[string]models.FitnessTest{"pushups": pushUpTest()}}
	sessions := &mockSessionRepo{sessions: map[string]models.FitnessAssessmentSession{"sess1": {ID: "sess1"}}}
	records := &mockFitnessRecordRepo{}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent},
		"s2": {ID: "s2", Role: models.RoleStudent},
		"m1": {ID: "m1", Role: models.RoleManager},
	}}
	return tests, sessions, records, users
}

func TestRecordAssessment(t *testing.T) {
	tests, sessions, records, users := fitnessFixture()
	svc := NewFitnessService(tests, sessions, records, users, validator.New(), zap.NewNop())

	record, err := svc.RecordAssessment(context.Background(), "m1", RecordAssessmentRequest{
		UserID:      "s1",
		TestID:      "pushups",
		SessionID:   "sess1",
		Performance: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RatingGood, record.Rating)
	assert.Equal(t, "m1", record.ManagerID)
}

func TestRecordAssessmentDuplicate(t *testing.T) {
	tests, sessions, records, users := fitnessFixture()
	records.byKey = map[string]models.StudentFitnessRecord{"s1": {ID: "r1"}}
	svc := NewFitnessService(tests, sessions, records, users, validator.New(), zap.NewNop())

	_, err := svc.RecordAssessment(context.Background(), "m1", RecordAssessmentRequest{
		UserID:      "s1",
		TestID:      "pushups",
		SessionID:   "sess1",
		Performance: 42,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestBatchRecordAssessments(t *testing.T) {
	tests, sessions, records, users := fitnessFixture()
	svc := NewFitnessService(tests, sessions, records, users, validator.New(), zap.NewNop())

	results, err := svc.BatchRecordAssessments(context.Background(), "m1", BatchAssessmentRequest{
		TestID:    "pushups",
		SessionID: "sess1",
		Entries: []BatchAssessmentEntry{
			{UserID: "s1", Performance: 52},
			{UserID: "s2", Performance: 28},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.RatingExcellent, results[0].Rating)
	assert.Equal(t, models.RatingFail, results[1].Rating)
	assert.Len(t, records.batch, 2)
}

func TestBatchRecordAssessmentsRejectsExisting(t *testing.T) {
	tests, sessions, records, users := fitnessFixture()
	records.existing = []string{"s2"}
	svc := NewFitnessService(tests, sessions, records, users, validator.New(), zap.NewNop())

	_, err := svc.BatchRecordAssessments(context.Background(), "m1", BatchAssessmentRequest{
		TestID:    "pushups",
		SessionID: "sess1",
		Entries: []BatchAssessmentEntry{
			{UserID: "s1", Performance: 52},
			{UserID: "s2", Performance: 28},
		},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Equal(t, []string{"s2"}, appErr.Details["student_ids"])
	assert.Nil(t, records.batch)
}

func TestDeleteTestBlockedByRecords(t *testing.T) {
	tests, sessions, records, users := fitnessFixture()
	tests.recordCount = 3
	svc := NewFitnessService(tests, sessions, records, users, validator.New(), zap.NewNop())

	err := svc.DeleteTest(context.Background(), "pushups")
	require.Error(t, err)
	assert.Empty(t, tests.deleted)
}
