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

type mockAllowanceRepo struct {
	allowances   map[string]models.MonthlyAllowance
	existing     []string
	createdBatch []*models.MonthlyAllowance
	updated      *models.MonthlyAllowance
}

func (m *mockAllowanceRepo) List(ctx context.Context, filter models.AllowanceFilter) ([]models.MonthlyAllowance, int, error) {
	return nil, 0, nil
}

func (m *mockAllowanceRepo) FindByID(ctx context.Context, id string) (*models.MonthlyAllowance, error) {
	if a, ok := m.allowances[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAllowanceRepo) ExistingUserIDs(ctx context.Context, month, year int, userIDs []string) ([]string, error) {
	return m.existing, nil
}

func (m *mockAllowanceRepo) CreateBatch(ctx context.Context, allowances []*models.MonthlyAllowance) error {
	m.createdBatch = allowances
	return nil
}

func (m *mockAllowanceRepo) Update(ctx context.Context, allowance *models.MonthlyAllowance) error {
	m.updated = allowance
	return nil
}

func allowanceFixture() (*mockAllowanceRepo, *mockUserReader) {
	allowances := &mockAllowanceRepo{}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent},
		"s2": {ID: "s2", Role: models.RoleStudent},
		"m1": {ID: "m1", Role: models.RoleManager},
	}}
	return allowances, users
}

func TestAllowanceServiceBulkCreateSkipsExisting(t *testing.T) {
	allowances, users := allowanceFixture()
	allowances.existing = []string{"s2"}
	svc := NewAllowanceService(allowances, users, validator.New(), zap.NewNop())

	result, err := svc.BulkCreate(context.Background(), BulkAllowanceRequest{
		Month:   3,
		Year:    2025,
		Amount:  250,
		UserIDs: []string{"s1", "s2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, []string{"s1"}, result.CreatedUserIDs)
	assert.Equal(t, []string{"s2"}, result.SkippedUserIDs)
	require.Len(t, allowances.createdBatch, 1)
	assert.Equal(t, "s1", allowances.createdBatch[0].UserID)
	assert.Equal(t, 3, allowances.createdBatch[0].Month)
}

func TestAllowanceServiceBulkCreateDedupesInput(t *testing.T) {
	allowances, users := allowanceFixture()
	svc := NewAllowanceService(allowances, users, validator.New(), zap.NewNop())

	result, err := svc.BulkCreate(context.Background(), BulkAllowanceRequest{
		Month:   3,
		Year:    2025,
		Amount:  250,
		UserIDs: []string{"s1", "s1", "s2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Equal(t, []string{"s1", "s2"}, result.CreatedUserIDs)
}

func TestAllowanceServiceBulkCreateRejectsNonStudents(t *testing.T) {
	allowances, users := allowanceFixture()
	svc := NewAllowanceService(allowances, users, validator.New(), zap.NewNop())

	_, err := svc.BulkCreate(context.Background(), BulkAllowanceRequest{
		Month:   3,
		Year:    2025,
		Amount:  250,
		UserIDs: []string{"s1", "m1", "ghost"},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Equal(t, []string{"m1", "ghost"}, appErr.Details["student_ids"])
	assert.Nil(t, allowances.createdBatch)
}

func TestAllowanceServiceUpdateTogglesReceipt(t *testing.T) {
	allowances, users := allowanceFixture()
	allowances.allowances = map[string]models.MonthlyAllowance{"a1": {ID: "a1", Amount: 250}}
	svc := NewAllowanceService(allowances, users, validator.New(), zap.NewNop())
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = fixedClock(at)

	received := true
	allowance, err := svc.Update(context.Background(), "a1", UpdateAllowanceRequest{Received: &received})
	require.NoError(t, err)
	assert.True(t, allowance.Received)
	require.NotNil(t, allowance.ReceivedAt)
	assert.Equal(t, at, *allowance.ReceivedAt)

	received = false
	allowance, err = svc.Update(context.Background(), "a1", UpdateAllowanceRequest{Received: &received})
	require.NoError(t, err)
	assert.False(t, allowance.Received)
	assert.Nil(t, allowance.ReceivedAt)
}

func TestAllowanceServiceUpdateAmendsAmount(t *testing.T) {
	allowances, users := allowanceFixture()
	allowances.allowances = map[string]models.MonthlyAllowance{"a1": {ID: "a1", Amount: 250}}
	svc := NewAllowanceService(allowances, users, validator.New(), zap.NewNop())

	amount := 300.0
	allowance, err := svc.Update(context.Background(), "a1", UpdateAllowanceRequest{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 300.0, allowance.Amount)
	require.NotNil(t, allowances.updated)
}
