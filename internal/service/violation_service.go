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

// violationEditWindow bounds how long after recording a violation can still
// be modified or removed.
const violationEditWindow = 24 * time.Hour

type violationRepository interface {
	List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.ViolationRecord, error)
	Create(ctx context.Context, violation *models.ViolationRecord) error
	Update(ctx context.Context, violation *models.ViolationRecord) error
	Delete(ctx context.Context, id string) error
}

// CreateViolationRequest records a discipline violation against a student.
type CreateViolationRequest struct {
	StudentID     string    `json:"student_id" validate:"required"`
	ViolationName string    `json:"violation_name" validate:"required"`
	ViolationDate time.Time `json:"violation_date" validate:"required"`
}

// UpdateViolationRequest amends a violation inside its edit window.
type UpdateViolationRequest struct {
	ViolationName string    `json:"violation_name" validate:"required"`
	ViolationDate time.Time `json:"violation_date" validate:"required"`
}

// ViolationService manages discipline violation records. Only the manager who
// recorded a violation may change it, and only within the edit window.
type ViolationService struct {
	violations violationRepository
	users      userReader
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewViolationService creates a new violation service instance.
func NewViolationService(violations violationRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *ViolationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViolationService{
		violations: violations,
		users:      users,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated violations.
func (s *ViolationService) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, *models.Pagination, error) {
	violations, total, err := s.violations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list violations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return violations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a violation by ID.
func (s *ViolationService) Get(ctx context.Context, id string) (*models.ViolationRecord, error) {
	violation, err := s.violations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "violation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation")
	}
	return violation, nil
}

// Create records a violation attributed to the acting manager.
func (s *ViolationService) Create(ctx context.Context, managerID string, req CreateViolationRequest) (*models.ViolationRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "violations can only be recorded against students")
	}

	violation := &models.ViolationRecord{
		StudentID:     req.StudentID,
		ManagerID:     managerID,
		ViolationName: req.ViolationName,
		ViolationDate: req.ViolationDate,
	}
	if err := s.violations.Create(ctx, violation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create violation")
	}
	return violation, nil
}

// guard verifies ownership before editability, so an unauthorized manager
// learns nothing about the record's age.
func (s *ViolationService) guard(violation *models.ViolationRecord, managerID string) error {
	if violation.ManagerID != managerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the recording manager may modify this violation")
	}
	if s.now().Sub(violation.CreatedAt) > violationEditWindow {
		return appErrors.Clone(appErrors.ErrBusinessRule, "violation record is no longer editable")
	}
	return nil
}

// Update amends a violation on behalf of its recording manager.
func (s *ViolationService) Update(ctx context.Context, id, managerID string, req UpdateViolationRequest) (*models.ViolationRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation payload")
	}

	violation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard(violation, managerID); err != nil {
		return nil, err
	}

	violation.ViolationName = req.ViolationName
	violation.ViolationDate = req.ViolationDate
	if err := s.violations.Update(ctx, violation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update violation")
	}
	return violation, nil
}

// Delete removes a violation on behalf of its recording manager.
func (s *ViolationService) Delete(ctx context.Context, id, managerID string) error {
	violation, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard(violation, managerID); err != nil {
		return err
	}

	if err := s.violations.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete violation")
	}
	return nil
}
