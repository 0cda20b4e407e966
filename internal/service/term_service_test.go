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

type mockTermRepo struct {
	terms       map[string]models.Term
	overlapping []models.Term
	courseCount int
	created     *models.Term
	deleted     []string
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	return nil, 0, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ListOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]models.Term, error) {
	return m.overlapping, nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	term.ID = "new-term"
	m.created = term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	if m.terms == nil {
		m.terms = make(map[string]models.Term)
	}
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) SoftDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTermRepo) CountCourses(ctx context.Context, id string) (int, error) {
	return m.courseCount, nil
}

func validTermRequest() CreateTermRequest {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	return CreateTermRequest{
		Name:           "2025A",
		StartDate:      start,
		EndDate:        start.AddDate(0, 4, 0),
		RosterDeadline: start.AddDate(0, 0, 21),
		GradeEntryDate: start.AddDate(0, 4, 20),
	}
}

func TestTermServiceCreate(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	term, err := svc.Create(context.Background(), validTermRequest())
	require.NoError(t, err)
	assert.Equal(t, "2025A", term.Name)
	assert.NotNil(t, repo.created)
}

func TestTermServiceCreateCollectsAllDateViolations(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, validator.New(), zap.NewNop())

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	req := CreateTermRequest{
		Name:           "2025A",
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, -1),
		RosterDeadline: start.AddDate(0, 0, 5),
		GradeEntryDate: start,
	}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	dates, ok := appErr.Details["dates"].([]string)
	require.True(t, ok)
	assert.Len(t, dates, 4)
}

func TestTermServiceCreateRosterDeadlineBoundary(t *testing.T) {
	// Exactly 14 days after start is allowed.
	repo := &mockTermRepo{}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	req := validTermRequest()
	req.RosterDeadline = req.StartDate.AddDate(0, 0, 14)

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestTermServiceCreateRejectsBadName(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, validator.New(), zap.NewNop())

	req := validTermRequest()
	req.Name = "Spring-2025"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTermServiceCreateRejectsOverlap(t *testing.T) {
	repo := &mockTermRepo{overlapping: []models.Term{{ID: "t-prev"}}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validTermRequest())
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Equal(t, []string{"t-prev"}, appErr.Details["overlapping_term_ids"])
}

func TestTermServiceUpdateSkipsNameCheckWhenUnchanged(t *testing.T) {
	// Legacy names that predate the format rule stay editable as long as
	// the name itself is untouched.
	req := validTermRequest()
	repo := &mockTermRepo{terms: map[string]models.Term{"t1": {
		ID:             "t1",
		Name:           "LEGACY",
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		RosterDeadline: req.RosterDeadline,
		GradeEntryDate: req.GradeEntryDate,
	}}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	update := UpdateTermRequest{
		Name:           "LEGACY",
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		RosterDeadline: req.RosterDeadline,
		GradeEntryDate: req.GradeEntryDate,
	}
	_, err := svc.Update(context.Background(), "t1", update)
	require.NoError(t, err)

	update.Name = "bad name"
	_, err = svc.Update(context.Background(), "t1", update)
	require.Error(t, err)
}

func TestTermServiceDeleteBlockedByCourses(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{"t1": {ID: "t1"}}, courseCount: 2}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "t1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestTermServiceDelete(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{"t1": {ID: "t1"}}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "t1"))
	assert.Contains(t, repo.deleted, "t1")
}
