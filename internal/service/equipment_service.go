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

type equipmentRepository interface {
	ListTypes(ctx context.Context) ([]models.EquipmentType, error)
	FindTypeByID(ctx context.Context, id string) (*models.EquipmentType, error)
	CreateType(ctx context.Context, equipmentType *models.EquipmentType) error
	ListDistributions(ctx context.Context, year int) ([]models.EquipmentDistribution, error)
	FindDistributionByID(ctx context.Context, id string) (*models.EquipmentDistribution, error)
	CreateDistribution(ctx context.Context, distribution *models.EquipmentDistribution) error
	ListReceiptsByDistribution(ctx context.Context, distributionID string) ([]models.EquipmentReceipt, error)
	FindReceiptByID(ctx context.Context, id string) (*models.EquipmentReceipt, error)
	CountReceipts(ctx context.Context, distributionID string) (int, error)
	ReceiptedUserIDs(ctx context.Context, distributionID string, userIDs []string) ([]string, error)
	CreateReceipts(ctx context.Context, receipts []*models.EquipmentReceipt) error
	UpdateReceipt(ctx context.Context, receipt *models.EquipmentReceipt) error
}

// CreateEquipmentTypeRequest describes payload for creating equipment types.
type CreateEquipmentTypeRequest struct {
	Name string `json:"name" validate:"required"`
	Unit string `json:"unit" validate:"required"`
}

// CreateDistributionRequest describes a yearly allocation of one type.
type CreateDistributionRequest struct {
	Year            int    `json:"year" validate:"required,gte=2000"`
	EquipmentTypeID string `json:"equipment_type_id" validate:"required"`
	Quantity        int    `json:"quantity" validate:"required,gt=0"`
}

// CreateReceiptsRequest registers receipts for a group of students.
type CreateReceiptsRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
	Notes   string   `json:"notes"`
}

// UpdateReceiptRequest toggles the received flag or amends notes.
type UpdateReceiptRequest struct {
	Received *bool   `json:"received"`
	Notes    *string `json:"notes"`
}

// EquipmentService manages equipment types, distributions and receipts.
type EquipmentService struct {
	equipment equipmentRepository
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEquipmentService creates a new equipment service instance.
func NewEquipmentService(equipment equipmentRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *EquipmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EquipmentService{
		equipment: equipment,
		users:     users,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListTypes returns every equipment type.
func (s *EquipmentService) ListTypes(ctx context.Context) ([]models.EquipmentType, error) {
	types, err := s.equipment.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list equipment types")
	}
	return types, nil
}

// CreateType adds a new equipment type.
func (s *EquipmentService) CreateType(ctx context.Context, req CreateEquipmentTypeRequest) (*models.EquipmentType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid equipment type payload")
	}
	equipmentType := &models.EquipmentType{Name: req.Name, Unit: req.Unit}
	if err := s.equipment.CreateType(ctx, equipmentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create equipment type")
	}
	return equipmentType, nil
}

// ListDistributions returns distributions, optionally scoped to a year.
func (s *EquipmentService) ListDistributions(ctx context.Context, year int) ([]models.EquipmentDistribution, error) {
	distributions, err := s.equipment.ListDistributions(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list distributions")
	}
	return distributions, nil
}

// CreateDistribution adds a yearly allocation for an equipment type.
func (s *EquipmentService) CreateDistribution(ctx context.Context, req CreateDistributionRequest) (*models.EquipmentDistribution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid distribution payload")
	}

	if _, err := s.equipment.FindTypeByID(ctx, req.EquipmentTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "equipment type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load equipment type")
	}

	distribution := &models.EquipmentDistribution{
		Year:            req.Year,
		EquipmentTypeID: req.EquipmentTypeID,
		Quantity:        req.Quantity,
	}
	if err := s.equipment.CreateDistribution(ctx, distribution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create distribution")
	}
	return distribution, nil
}

// ListReceipts returns every receipt issued under a distribution.
func (s *EquipmentService) ListReceipts(ctx context.Context, distributionID string) ([]models.EquipmentReceipt, error) {
	if _, err := s.equipment.FindDistributionByID(ctx, distributionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "distribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load distribution")
	}
	receipts, err := s.equipment.ListReceiptsByDistribution(ctx, distributionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list receipts")
	}
	return receipts, nil
}

// CreateReceipts issues receipts for a group of students under a distribution.
// Students who already hold a receipt reject the request with their IDs, and
// the distribution quantity caps the total, reporting how many more receipts
// it can still absorb.
func (s *EquipmentService) CreateReceipts(ctx context.Context, distributionID string, req CreateReceiptsRequest) ([]*models.EquipmentReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipts payload")
	}

	distribution, err := s.equipment.FindDistributionByID(ctx, distributionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "distribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load distribution")
	}

	userIDs := make([]string, 0, len(req.UserIDs))
	seen := make(map[string]bool, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if seen[id] {
			return nil, appErrors.CloneWithDetails(appErrors.ErrValidation, "request contains duplicate students", map[string]interface{}{"student_ids": []string{id}})
		}
		seen[id] = true
		userIDs = append(userIDs, id)
	}

	receipted, err := s.equipment.ReceiptedUserIDs(ctx, distributionID, userIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing receipts")
	}
	if len(receipted) > 0 {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "some students already hold receipts for this distribution", map[string]interface{}{"student_ids": receipted})
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

	existing, err := s.equipment.CountReceipts(ctx, distributionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count receipts")
	}
	remaining := distribution.Quantity - existing
	if len(userIDs) > remaining {
		if remaining < 0 {
			remaining = 0
		}
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "distribution quantity exceeded", map[string]interface{}{"max_additional": remaining})
	}

	receipts := make([]*models.EquipmentReceipt, 0, len(userIDs))
	for _, id := range userIDs {
		receipts = append(receipts, &models.EquipmentReceipt{
			UserID:         id,
			DistributionID: distributionID,
			Received:       false,
			Notes:          req.Notes,
		})
	}
	if err := s.equipment.CreateReceipts(ctx, receipts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create receipts")
	}
	return receipts, nil
}

// UpdateReceipt toggles the received flag, stamping or clearing the receipt
// time, and amends notes.
func (s *EquipmentService) UpdateReceipt(ctx context.Context, id string, req UpdateReceiptRequest) (*models.EquipmentReceipt, error) {
	receipt, err := s.equipment.FindReceiptByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}

	if req.Received != nil {
		receipt.Received = *req.Received
		if *req.Received {
			at := s.now()
			receipt.ReceivedAt = &at
		} else {
			receipt.ReceivedAt = nil
		}
	}
	if req.Notes != nil {
		receipt.Notes = *req.Notes
	}

	if err := s.equipment.UpdateReceipt(ctx, receipt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update receipt")
	}
	return receipt, nil
}
