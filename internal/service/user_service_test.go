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
	"golang.org/x/crypto/bcrypt"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type mockUserRepo struct {
	users         map[string]models.User
	emailTaken    bool
	created       *models.User
	updated       *models.User
	managerDetail *models.ManagerDetail
	detailCreated *models.ManagerDetail
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emailTaken, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.created = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.updated = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (m *mockUserRepo) CreateManagerDetail(ctx context.Context, detail *models.ManagerDetail) error {
	m.detailCreated = detail
	return nil
}

func (m *mockUserRepo) FindManagerDetailByUser(ctx context.Context, userID string) (*models.ManagerDetail, error) {
	if m.managerDetail != nil && m.managerDetail.UserID == userID {
		return m.managerDetail, nil
	}
	return nil, sql.ErrNoRows
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "cadet@academy.mil",
		Password: "correct-horse",
		FullName: "Cadet One",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
	assert.Nil(t, repo.detailCreated)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{emailTaken: true}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "cadet@academy.mil",
		Password: "correct-horse",
		FullName: "Cadet One",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestUserServiceCreateManagerProvisionsDetail(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), NewManagerDetailProvisioner(repo, zap.NewNop()))

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "officer@academy.mil",
		Password: "correct-horse",
		FullName: "Officer One",
		Role:     models.RoleManager,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.detailCreated)
	assert.Equal(t, "new-user", repo.detailCreated.UserID)
}

func TestUserServicePromotionProvisionsDetail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "cadet@academy.mil", FullName: "Cadet One", Role: models.RoleStudent, Active: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), NewManagerDetailProvisioner(repo, zap.NewNop()))

	user, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Email:    "cadet@academy.mil",
		FullName: "Cadet One",
		Role:     models.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
	require.NotNil(t, repo.detailCreated)
	assert.Equal(t, "u1", repo.detailCreated.UserID)
}

func TestUserServiceUpdateSameRoleDoesNotProvision(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "officer@academy.mil", FullName: "Officer One", Role: models.RoleManager, Active: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), NewManagerDetailProvisioner(repo, zap.NewNop()))

	_, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Email:    "officer@academy.mil",
		FullName: "Officer Renamed",
		Role:     models.RoleManager,
	})
	require.NoError(t, err)
	assert.Nil(t, repo.detailCreated)
}

func TestManagerDetailProvisionerIdempotent(t *testing.T) {
	repo := &mockUserRepo{managerDetail: &models.ManagerDetail{ID: "md1", UserID: "u1"}}
	provisioner := NewManagerDetailProvisioner(repo, zap.NewNop())

	err := provisioner.UserPromotedToManager(context.Background(), &models.User{ID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, repo.detailCreated)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "cadet@academy.mil", FullName: "Cadet One", Role: models.RoleStudent, Active: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))
	require.NotNil(t, repo.updated)
	assert.False(t, repo.updated.Active)
}
