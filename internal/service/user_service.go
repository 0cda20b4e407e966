package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateManagerDetail(ctx context.Context, detail *models.ManagerDetail) error
	FindManagerDetailByUser(ctx context.Context, userID string) (*models.ManagerDetail, error)
}

// RoleChangeListener is notified when a user gains the manager role, either
// at creation or through a role update.
type RoleChangeListener interface {
	UserPromotedToManager(ctx context.Context, user *models.User) error
}

// CreateUserRequest describes payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN MANAGER STUDENT"`
}

// UpdateUserRequest updates mutable fields on a user.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN MANAGER STUDENT"`
	Active   *bool           `json:"active"`
}

// UserService manages user accounts and role transitions.
type UserService struct {
	repo      userRepository
	listeners []RoleChangeListener
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new user service instance.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger, listeners ...RoleChangeListener) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, listeners: listeners, validator: validate, logger: logger}
}

// List returns paginated users.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// GetManagerDetail returns the manager side record for a user.
func (s *UserService) GetManagerDetail(ctx context.Context, userID string) (*models.ManagerDetail, error) {
	detail, err := s.repo.FindManagerDetailByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "manager detail not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager detail")
	}
	return detail, nil
}

// Create adds a new user. Managers get their side record provisioned through
// the registered listeners.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %s is already registered", req.Email))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if user.Role == models.RoleManager {
		s.notifyPromotion(ctx, user)
	}
	return user, nil
}

// Update modifies a user. A transition into the manager role fires the
// provisioning listeners.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != user.Email {
		exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("email %s is already registered", req.Email))
		}
	}

	becameManager := user.Role != models.RoleManager && req.Role == models.RoleManager

	user.Email = req.Email
	user.FullName = req.FullName
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	if becameManager {
		s.notifyPromotion(ctx, user)
	}
	return user, nil
}

// Deactivate flips a user inactive without removing history.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}
	user.Active = false
	if err := s.repo.Update(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}

func (s *UserService) notifyPromotion(ctx context.Context, user *models.User) {
	for _, listener := range s.listeners {
		if err := listener.UserPromotedToManager(ctx, user); err != nil {
			s.logger.Error("manager provisioning listener failed",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}
}

// ManagerDetailProvisioner creates the manager side record on promotion. It
// is idempotent: an existing record is left untouched.
type ManagerDetailProvisioner struct {
	repo   userRepository
	logger *zap.Logger
}

// NewManagerDetailProvisioner creates the default promotion listener.
func NewManagerDetailProvisioner(repo userRepository, logger *zap.Logger) *ManagerDetailProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManagerDetailProvisioner{repo: repo, logger: logger}
}

// UserPromotedToManager provisions an empty manager detail record.
func (p *ManagerDetailProvisioner) UserPromotedToManager(ctx context.Context, user *models.User) error {
	if _, err := p.repo.FindManagerDetailByUser(ctx, user.ID); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return p.repo.CreateManagerDetail(ctx, &models.ManagerDetail{UserID: user.ID})
}
