package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type fitnessTestRepository interface {
	List(ctx context.Context) ([]models.FitnessTest, error)
	FindByID(ctx context.Context, id string) (*models.FitnessTest, error)
	Create(ctx context.Context, test *models.FitnessTest, threshold *models.FitnessTestThreshold) error
	Update(ctx context.Context, test *models.FitnessTest) error
	UpsertThreshold(ctx context.Context, threshold *models.FitnessTestThreshold) error
	SoftDelete(ctx context.Context, id string) error
	CountRecords(ctx context.Context, testID string) (int, error)
}

type assessmentSessionRepository interface {
	List(ctx context.Context) ([]models.FitnessAssessmentSession, error)
	FindByID(ctx context.Context, id string) (*models.FitnessAssessmentSession, error)
	FindByWeek(ctx context.Context, weekStart, weekEnd time.Time) (*models.FitnessAssessmentSession, error)
	Create(ctx context.Context, session *models.FitnessAssessmentSession) error
}

type fitnessRecordRepository interface {
	List(ctx context.Context, filter models.FitnessRecordFilter) ([]models.StudentFitnessRecord, int, error)
	FindByKey(ctx context.Context, userID, testID, sessionID string) (*models.StudentFitnessRecord, error)
	ExistingUserIDs(ctx context.Context, testID, sessionID string, userIDs []string) ([]string, error)
	Create(ctx context.Context, record *models.StudentFitnessRecord) error
	CreateBatch(ctx context.Context, records []*models.StudentFitnessRecord) error
	Delete(ctx context.Context, id string) error
}

// CreateFitnessTestRequest describes payload for creating a fitness test with
// its rating thresholds.
type CreateFitnessTestRequest struct {
	Name               string  `json:"name" validate:"required"`
	Unit               string  `json:"unit" validate:"required"`
	HigherIsBetter     bool    `json:"higher_is_better"`
	ExcellentThreshold float64 `json:"excellent_threshold"`
	GoodThreshold      float64 `json:"good_threshold"`
	PassThreshold      float64 `json:"pass_threshold"`
}

// UpdateFitnessTestRequest updates mutable test fields and thresholds.
type UpdateFitnessTestRequest struct {
	Name               string  `json:"name" validate:"required"`
	Unit               string  `json:"unit" validate:"required"`
	HigherIsBetter     bool    `json:"higher_is_better"`
	ExcellentThreshold float64 `json:"excellent_threshold"`
	GoodThreshold      float64 `json:"good_threshold"`
	PassThreshold      float64 `json:"pass_threshold"`
}

// RecordAssessmentRequest records one student's performance. SessionID empty
// means the current calendar week's session.
type RecordAssessmentRequest struct {
	UserID      string  `json:"user_id" validate:"required"`
	TestID      string  `json:"test_id" validate:"required"`
	SessionID   string  `json:"session_id" validate:"omitempty"`
	Performance float64 `json:"performance" validate:"gte=0"`
	Notes       string  `json:"notes"`
}

// BatchAssessmentEntry is one student's row in a batch submission.
type BatchAssessmentEntry struct {
	UserID      string  `json:"user_id" validate:"required"`
	Performance float64 `json:"performance" validate:"gte=0"`
	Notes       string  `json:"notes"`
}

// BatchAssessmentRequest records performances for many students at once.
type BatchAssessmentRequest struct {
	TestID    string                 `json:"test_id" validate:"required"`
	SessionID string                 `json:"session_id" validate:"omitempty"`
	Entries   []BatchAssessmentEntry `json:"entries" validate:"required,min=1,dive"`
}

// BatchAssessmentResult reports the derived rating per student.
type BatchAssessmentResult struct {
	UserID      string               `json:"user_id"`
	Performance float64              `json:"performance"`
	Rating      models.FitnessRating `json:"rating"`
}

// FitnessService manages tests, weekly sessions and assessment records.
type FitnessService struct {
	tests     fitnessTestRepository
	sessions  assessmentSessionRepository
	records   fitnessRecordRepository
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFitnessService creates a new fitness service instance.
func NewFitnessService(tests fitnessTestRepository, sessions assessmentSessionRepository, records fitnessRecordRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *FitnessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FitnessService{
		tests:     tests,
		sessions:  sessions,
		records:   records,
		users:     users,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DetermineRating classifies a performance against the test's thresholds.
// Boundaries are inclusive: hitting a threshold exactly earns that rating.
// A test without thresholds cannot award anything above FAIL.
func DetermineRating(test *models.FitnessTest, performance float64) models.FitnessRating {
	t := test.Threshold
	if t == nil {
		return models.RatingFail
	}
	if test.HigherIsBetter {
		switch {
		case performance >= t.ExcellentThreshold:
			return models.RatingExcellent
		case performance >= t.GoodThreshold:
			return models.RatingGood
		case performance >= t.PassThreshold:
			return models.RatingPass
		}
		return models.RatingFail
	}
	switch {
	case performance <= t.ExcellentThreshold:
		return models.RatingExcellent
	case performance <= t.GoodThreshold:
		return models.RatingGood
	case performance <= t.PassThreshold:
		return models.RatingPass
	}
	return models.RatingFail
}

// validateThresholdOrder checks monotonicity of the three boundaries for the
// given direction and names every offending pair.
func validateThresholdOrder(higherIsBetter bool, excellent, good, pass float64) []string {
	var fields []string
	if higherIsBetter {
		if excellent < good {
			fields = append(fields, "excellent_threshold must be >= good_threshold")
		}
		if good < pass {
			fields = append(fields, "good_threshold must be >= pass_threshold")
		}
		return fields
	}
	if excellent > good {
		fields = append(fields, "excellent_threshold must be <= good_threshold")
	}
	if good > pass {
		fields = append(fields, "good_threshold must be <= pass_threshold")
	}
	return fields
}

// ListTests returns every active test with thresholds attached.
func (s *FitnessService) ListTests(ctx context.Context) ([]models.FitnessTest, error) {
	tests, err := s.tests.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fitness tests")
	}
	return tests, nil
}

// GetTest returns one test by ID.
func (s *FitnessService) GetTest(ctx context.Context, id string) (*models.FitnessTest, error) {
	test, err := s.tests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fitness test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fitness test")
	}
	return test, nil
}

// CreateTest adds a new test together with its thresholds.
func (s *FitnessService) CreateTest(ctx context.Context, req CreateFitnessTestRequest) (*models.FitnessTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fitness test payload")
	}
	if fields := validateThresholdOrder(req.HigherIsBetter, req.ExcellentThreshold, req.GoodThreshold, req.PassThreshold); len(fields) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "threshold ordering is invalid for the test direction", map[string]interface{}{"fields": fields})
	}

	test := &models.FitnessTest{
		Name:           req.Name,
		Unit:           req.Unit,
		HigherIsBetter: req.HigherIsBetter,
	}
	threshold := &models.FitnessTestThreshold{
		ExcellentThreshold: req.ExcellentThreshold,
		GoodThreshold:      req.GoodThreshold,
		PassThreshold:      req.PassThreshold,
	}
	if err := s.tests.Create(ctx, test, threshold); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fitness test")
	}
	return test, nil
}

// UpdateTest modifies a test and replaces its thresholds.
func (s *FitnessService) UpdateTest(ctx context.Context, id string, req UpdateFitnessTestRequest) (*models.FitnessTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fitness test payload")
	}
	if fields := validateThresholdOrder(req.HigherIsBetter, req.ExcellentThreshold, req.GoodThreshold, req.PassThreshold); len(fields) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "threshold ordering is invalid for the test direction", map[string]interface{}{"fields": fields})
	}

	test, err := s.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}

	test.Name = req.Name
	test.Unit = req.Unit
	test.HigherIsBetter = req.HigherIsBetter
	if err := s.tests.Update(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fitness test")
	}

	threshold := &models.FitnessTestThreshold{
		FitnessTestID:      id,
		ExcellentThreshold: req.ExcellentThreshold,
		GoodThreshold:      req.GoodThreshold,
		PassThreshold:      req.PassThreshold,
	}
	if test.Threshold != nil {
		threshold.ID = test.Threshold.ID
		threshold.CreatedAt = test.Threshold.CreatedAt
	}
	if err := s.tests.UpsertThreshold(ctx, threshold); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save thresholds")
	}
	test.Threshold = threshold
	return test, nil
}

// DeleteTest soft-deletes a test once no record references it.
func (s *FitnessService) DeleteTest(ctx context.Context, id string) error {
	if _, err := s.GetTest(ctx, id); err != nil {
		return err
	}

	count, err := s.tests.CountRecords(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fitness test dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "fitness test has assessment records associated")
	}

	if err := s.tests.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fitness test")
	}
	return nil
}

// ListSessions returns every assessment session, newest week first.
func (s *FitnessService) ListSessions(ctx context.Context) ([]models.FitnessAssessmentSession, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// weekBounds returns the Monday 00:00 UTC and Sunday of the week containing t.
func weekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(weekday - 1))
	sunday := monday.AddDate(0, 0, 6)
	return monday, sunday
}

// CurrentWeekSession returns the session covering the current calendar week,
// creating it on first use. The generated name uses the ISO week number.
func (s *FitnessService) CurrentWeekSession(ctx context.Context) (*models.FitnessAssessmentSession, error) {
	monday, sunday := weekBounds(s.now())

	session, err := s.sessions.FindByWeek(ctx, monday, sunday)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly session")
	}

	_, week := monday.ISOWeek()
	session = &models.FitnessAssessmentSession{
		Name:          fmt.Sprintf("Week %d – %s/%d", week, monday.Month().String(), monday.Year()),
		WeekStartDate: monday,
		WeekEndDate:   sunday,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create weekly session")
	}
	return session, nil
}

func (s *FitnessService) resolveSession(ctx context.Context, sessionID string) (*models.FitnessAssessmentSession, error) {
	if sessionID == "" {
		return s.CurrentWeekSession(ctx)
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *FitnessService) requireStudent(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrBusinessRule, "fitness records can only target students")
	}
	return nil
}

// ListRecords returns paginated fitness records.
func (s *FitnessService) ListRecords(ctx context.Context, filter models.FitnessRecordFilter) ([]models.StudentFitnessRecord, *models.Pagination, error) {
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fitness records")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RecordAssessment classifies and stores one student's performance. At most
// one record may exist per (student, test, session).
func (s *FitnessService) RecordAssessment(ctx context.Context, managerID string, req RecordAssessmentRequest) (*models.StudentFitnessRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}

	test, err := s.GetTest(ctx, req.TestID)
	if err != nil {
		return nil, err
	}
	session, err := s.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStudent(ctx, req.UserID); err != nil {
		return nil, err
	}

	if _, err := s.records.FindByKey(ctx, req.UserID, test.ID, session.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a record for this test in this session")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing record")
	}

	record := &models.StudentFitnessRecord{
		UserID:              req.UserID,
		ManagerID:           managerID,
		FitnessTestID:       test.ID,
		AssessmentSessionID: session.ID,
		Performance:         req.Performance,
		Rating:              DetermineRating(test, req.Performance),
		Notes:               req.Notes,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fitness record")
	}
	return record, nil
}

// BatchRecordAssessments stores performances for many students atomically.
// Any student already holding a record for the (test, session) pair, or any
// invalid student reference, rejects the whole batch with the offending IDs.
func (s *FitnessService) BatchRecordAssessments(ctx context.Context, managerID string, req BatchAssessmentRequest) ([]BatchAssessmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	test, err := s.GetTest(ctx, req.TestID)
	if err != nil {
		return nil, err
	}
	session, err := s.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(req.Entries))
	seen := make(map[string]bool, len(req.Entries))
	for _, entry := range req.Entries {
		if seen[entry.UserID] {
			return nil, appErrors.CloneWithDetails(appErrors.ErrValidation, "batch contains duplicate students", map[string]interface{}{"student_ids": []string{entry.UserID}})
		}
		seen[entry.UserID] = true
		userIDs = append(userIDs, entry.UserID)
	}

	existing, err := s.records.ExistingUserIDs(ctx, test.ID, session.ID, userIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing records")
	}
	if len(existing) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "some students already have records for this test in this session", map[string]interface{}{"student_ids": existing})
	}

	var invalid []string
	for _, id := range userIDs {
		if err := s.requireStudent(ctx, id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "some entries do not reference valid students", map[string]interface{}{"student_ids": invalid})
	}

	records := make([]*models.StudentFitnessRecord, 0, len(req.Entries))
	results := make([]BatchAssessmentResult, 0, len(req.Entries))
	for _, entry := range req.Entries {
		rating := DetermineRating(test, entry.Performance)
		records = append(records, &models.StudentFitnessRecord{
			UserID:              entry.UserID,
			ManagerID:           managerID,
			FitnessTestID:       test.ID,
			AssessmentSessionID: session.ID,
			Performance:         entry.Performance,
			Rating:              rating,
			Notes:               entry.Notes,
		})
		results = append(results, BatchAssessmentResult{UserID: entry.UserID, Performance: entry.Performance, Rating: rating})
	}

	if err := s.records.CreateBatch(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save batch records")
	}
	return results, nil
}

// DeleteRecord removes one fitness record.
func (s *FitnessService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fitness record")
	}
	return nil
}
