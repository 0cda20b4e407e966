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

type mockViolationRepo struct {
	violations map[string]models.ViolationRecord
	created    *models.ViolationRecord
	updated    *models.ViolationRecord
	deletedID  string
}

func (m *mockViolationRepo) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, int, error) {
	return nil, 0, nil
}

func (m *mockViolationRepo) FindByID(ctx context.Context, id string) (*models.ViolationRecord, error) {
	if v, ok := m.violations[id]; ok {
		return &v, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockViolationRepo) Create(ctx context.Context, violation *models.ViolationRecord) error {
	violation.ID = "new-violation"
	m.created = violation
	return nil
}

func (m *mockViolationRepo) Update(ctx context.Context, violation *models.ViolationRecord) error {
	m.updated = violation
	return nil
}

func (m *mockViolationRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func violationFixture(recordedAt time.Time) (*mockViolationRepo, *mockUserReader) {
	violations := &mockViolationRepo{
		violations: map[string]models.ViolationRecord{
			"v1": {
				ID:            "v1",
				StudentID:     "s1",
				ManagerID:     "m1",
				ViolationName: "late for formation",
				ViolationDate: recordedAt,
				CreatedAt:     recordedAt,
			},
		},
	}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent},
		"m1": {ID: "m1", Role: models.RoleManager},
	}}
	return violations, users
}

func TestViolationServiceCreate(t *testing.T) {
	violations, users := violationFixture(time.Now())
	svc := NewViolationService(violations, users, validator.New(), zap.NewNop())

	violation, err := svc.Create(context.Background(), "m1", CreateViolationRequest{
		StudentID:     "s1",
		ViolationName: "unpolished boots",
		ViolationDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", violation.ManagerID)
	assert.Equal(t, "s1", violation.StudentID)
}

func TestViolationServiceCreateRejectsNonStudent(t *testing.T) {
	violations, users := violationFixture(time.Now())
	svc := NewViolationService(violations, users, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "m1", CreateViolationRequest{
		StudentID:     "m1",
		ViolationName: "unpolished boots",
		ViolationDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
}

func TestViolationServiceUpdateWithinWindow(t *testing.T) {
	recordedAt := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	violations, users := violationFixture(recordedAt)
	svc := NewViolationService(violations, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(recordedAt.Add(23 * time.Hour))

	violation, err := svc.Update(context.Background(), "v1", "m1", UpdateViolationRequest{
		ViolationName: "late for formation, repeated",
		ViolationDate: recordedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "late for formation, repeated", violation.ViolationName)
	require.NotNil(t, violations.updated)
}

func TestViolationServiceUpdateAfterWindow(t *testing.T) {
	recordedAt := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	violations, users := violationFixture(recordedAt)
	svc := NewViolationService(violations, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(recordedAt.Add(25 * time.Hour))

	_, err := svc.Update(context.Background(), "v1", "m1", UpdateViolationRequest{
		ViolationName: "late for formation, repeated",
		ViolationDate: recordedAt,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Nil(t, violations.updated)
}

func TestViolationServiceOtherManagerForbiddenEvenWhenStale(t *testing.T) {
	recordedAt := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	violations, users := violationFixture(recordedAt)
	svc := NewViolationService(violations, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(recordedAt.Add(48 * time.Hour))

	_, err := svc.Update(context.Background(), "v1", "m2", UpdateViolationRequest{
		ViolationName: "tampered record",
		ViolationDate: recordedAt,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestViolationServiceDelete(t *testing.T) {
	recordedAt := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	violations, users := violationFixture(recordedAt)
	svc := NewViolationService(violations, users, validator.New(), zap.NewNop())
	svc.now = fixedClock(recordedAt.Add(time.Hour))

	require.NoError(t, svc.Delete(context.Background(), "v1", "m1"))
	assert.Equal(t, "v1", violations.deletedID)

	err := svc.Delete(context.Background(), "v1", "m2")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
