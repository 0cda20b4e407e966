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
	"github.com/khaind/macad-api/pkg/config"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users         map[string]models.User
	tokens        map[string]models.RefreshToken
	createdToken  *models.RefreshToken
	revokedID     string
	revokedUserID string
	lastLoginID   string
	passwordHash  string
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginID = id
	return nil
}

func (m *mockAuthUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordHash = passwordHash
	return nil
}

func (m *mockAuthUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.ID = "rt-" + token.UserID
	m.createdToken = token
	return nil
}

func (m *mockAuthUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedID = id
	return nil
}

func (m *mockAuthUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUserID = userID
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "macad-api",
		Expiration:        15 * time.Minute,
		RefreshExpiration: 7 * 24 * time.Hour,
	}
}

func authFixture(t *testing.T) *mockAuthUserRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAuthUserRepo{
		users: map[string]models.User{
			"u1": {
				ID:           "u1",
				Email:        "cadet@academy.mil",
				PasswordHash: string(hash),
				FullName:     "Cadet One",
				Role:         models.RoleStudent,
				Active:       true,
			},
		},
		tokens: map[string]models.RefreshToken{},
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := authFixture(t)
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cadet@academy.mil",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Equal(t, "u1", repo.lastLoginID)
	require.NotNil(t, repo.createdToken)
	assert.Equal(t, resp.RefreshToken, repo.createdToken.Token)
}

func TestAuthServiceLoginBadPassword(t *testing.T) {
	repo := authFixture(t)
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cadet@academy.mil",
		Password: "wrong",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := authFixture(t)
	user := repo.users["u1"]
	user.Active = false
	repo.users["u1"] = user
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cadet@academy.mil",
		Password: "correct-horse",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceRefreshRotates(t *testing.T) {
	repo := authFixture(t)
	repo.tokens["old-token"] = models.RefreshToken{
		ID:        "rt-old",
		UserID:    "u1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	resp, err := svc.Refresh(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, "rt-old", repo.revokedID)
	require.NotNil(t, repo.createdToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
}

func TestAuthServiceRefreshRejectsRevokedOrExpired(t *testing.T) {
	repo := authFixture(t)
	repo.tokens["revoked"] = models.RefreshToken{
		ID: "rt-r", UserID: "u1", Token: "revoked", Revoked: true,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	repo.tokens["expired"] = models.RefreshToken{
		ID: "rt-e", UserID: "u1", Token: "expired",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	for _, token := range []string{"revoked", "expired", "unknown"} {
		_, err := svc.Refresh(context.Background(), token)
		require.Error(t, err, token)
		appErr, ok := err.(*appErrors.Error)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	repo := authFixture(t)
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "cadet@academy.mil",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)

	otherCfg := testJWTConfig()
	otherCfg.Secret = "another-secret"
	other := NewAuthService(repo, otherCfg, validator.New(), zap.NewNop())
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := authFixture(t)
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	err := svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "correct-horse",
		NewPassword:     "battery-staple",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHash), []byte("battery-staple")))
	assert.Equal(t, "u1", repo.revokedUserID)
}

func TestAuthServiceChangePasswordWrongCurrent(t *testing.T) {
	repo := authFixture(t)
	svc := NewAuthService(repo, testJWTConfig(), validator.New(), zap.NewNop())

	err := svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "battery-staple",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Empty(t, repo.passwordHash)
}
