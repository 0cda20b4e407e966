package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type allowanceRepository interface {
	List(ctx context.Context, filter models.AllowanceFilter) ([]models.MonthlyAllowance, int, error)
	FindByID(ctx context.Context, id string) (*models.MonthlyAllowance, error)
	ExistingUserIDs(ctx context.Context, month, year int, userIDs []string) ([]string, error)
	CreateBatch(ctx context.Context, allowances []*models.MonthlyAllowance) error
	Update(ctx context.Context, allowance *models.MonthlyAllowance) error
}

// BulkAllowanceRequest grants one month's stipend to a group of students.
type BulkAllowanceRequest struct {
	Month   int      `json:"month" validate:"required,gte=1,lte=12"`
	Year    int      `json:"year" validate:"required,gte=2000"`
	Amount  float64  `json:"amount" validate:"required,gt=0"`
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
	Notes   string   `json:"notes"`
}

// BulkAllowanceResult reports what the bulk grant actually did. Students who
// already held an allowance for the period are skipped, not failed.
type BulkAllowanceResult struct {
	CreatedCount   int      `json:"created_count"`
	CreatedUserIDs []string `json:"created_user_ids"`
	SkippedUserIDs []string `json:"skipped_user_ids"`
}

// UpdateAllowanceRequest toggles receipt status or amends amount and notes.
type UpdateAllowanceRequest struct {
	Amount   *float64 `json:"amount" validate:"omitempty,gt=0"`
	Received *bool    `json:"received"`
	Notes    *string  `json:"notes"`
}

// AllowanceService manages monthly student allowances.
type AllowanceService struct {
	allowances allowanceRepository
	users      userReader
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAllowanceService creates a new allowance service instance.
func NewAllowanceService(allowances allowanceRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *AllowanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllowanceService{
		allowances: allowances,
		users:      users,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated allowances.
func (s *AllowanceService) List(ctx context.Context, filter models.AllowanceFilter) ([]models.MonthlyAllowance, *models.Pagination, error) {
	allowances, total, err := s.allowances.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list allowances")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return allowances, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// BulkCreate grants the month's allowance to every listed student. Students
// already holding one for the (month, year) pair are skipped and reported;
// entries that are not valid students reject the whole request.
func (s *AllowanceService) BulkCreate(ctx context.Context, req BulkAllowanceRequest) (*BulkAllowanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allowance payload")
	}

	userIDs := make([]string, 0, len(req.UserIDs))
	seen := make(map[string]bool, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		userIDs = append(userIDs, id)
	}

	var invalid []string
	for _, id := range userIDs {
		user, err := s.users.FindByID(ctx, id)
		if err != nil || user.Role != models.RoleStudent {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "some entries do not reference valid students", map[string]interface{}{"student_ids": invalid})
	}

	existing, err := s.allowances.ExistingUserIDs(ctx, req.Month, req.Year, userIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing allowances")
	}
	skip := make(map[string]bool, len(existing))
	for _, id := range existing {
		skip[id] = true
	}

	result := &BulkAllowanceResult{SkippedUserIDs: existing}
	var allowances []*models.MonthlyAllowance
	for _, id := range userIDs {
		if skip[id] {
			continue
		}
		allowances = append(allowances, &models.MonthlyAllowance{
			UserID: id,
			Month:  req.Month,
			Year:   req.Year,
			Amount: req.Amount,
			Notes:  req.Notes,
		})
		result.CreatedUserIDs = append(result.CreatedUserIDs, id)
	}

	if err := s.allowances.CreateBatch(ctx, allowances); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create allowances")
	}
	result.CreatedCount = len(result.CreatedUserIDs)
	return result, nil
}

// Update toggles receipt status, stamping or clearing the receipt time, and
// amends amount or notes.
func (s *AllowanceService) Update(ctx context.Context, id string, req UpdateAllowanceRequest) (*models.MonthlyAllowance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allowance payload")
	}

	allowance, err := s.allowances.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allowance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allowance")
	}

	if req.Amount != nil {
		allowance.Amount = *req.Amount
	}
	if req.Received != nil {
		allowance.Received = *req.Received
		if *req.Received {
			at := s.now()
			allowance.ReceivedAt = &at
		} else {
			allowance.ReceivedAt = nil
		}
	}
	if req.Notes != nil {
		allowance.Notes = *req.Notes
	}

	if err := s.allowances.Update(ctx, allowance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update allowance")
	}
	return allowance, nil
}
