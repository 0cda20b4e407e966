package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/khaind/macad-api/internal/models"
)

const receiptColumns = "id, user_id, distribution_id, received, received_at, notes, created_at, updated_at"

// EquipmentRepository handles persistence for equipment types, yearly
// distributions and student receipts.
type EquipmentRepository struct {
	db *sqlx.DB
}

// NewEquipmentRepository instantiates an equipment repository.
func NewEquipmentRepository(db *sqlx.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// ListTypes returns every equipment type.
func (r *EquipmentRepository) ListTypes(ctx context.Context) ([]models.EquipmentType, error) {
	const query = `SELECT id, name, unit, created_at, updated_at FROM equipment_types ORDER BY name ASC`
	var types []models.EquipmentType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list equipment types: %w", err)
	}
	return types, nil
}

// FindTypeByID loads an equipment type by identifier.
func (r *EquipmentRepository) FindTypeByID(ctx context.Context, id string) (*models.EquipmentType, error) {
	const query = `SELECT id, name, unit, created_at, updated_at FROM equipment_types WHERE id = $1`
	var equipmentType models.EquipmentType
	if err := r.db.GetContext(ctx, &equipmentType, query, id); err != nil {
		return nil, err
	}
	return &equipmentType, nil
}

// CreateType inserts a new equipment type.
func (r *EquipmentRepository) CreateType(ctx context.Context, equipmentType *models.EquipmentType) error {
	if equipmentType.ID == "" {
		equipmentType.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	equipmentType.CreatedAt = now
	equipmentType.UpdatedAt = now
	const query = `INSERT INTO equipment_types (id, name, unit, created_at, updated_at) VALUES (:id, :name, :unit, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, equipmentType); err != nil {
		return fmt.Errorf("create equipment type: %w", err)
	}
	return nil
}

// ListDistributions returns distributions, optionally scoped to a year.
func (r *EquipmentRepository) ListDistributions(ctx context.Context, year int) ([]models.EquipmentDistribution, error) {
	base := `SELECT id, year, equipment_type_id, quantity, created_at, updated_at FROM equipment_distributions`
	var args []interface{}
	if year > 0 {
		base += " WHERE year = $1"
		args = append(args, year)
	}
	base += " ORDER BY year DESC"
	var distributions []models.EquipmentDistribution
	if err := r.db.SelectContext(ctx, &distributions, base, args...); err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	return distributions, nil
}

// FindDistributionByID loads a distribution by identifier.
func (r *EquipmentRepository) FindDistributionByID(ctx context.Context, id string) (*models.EquipmentDistribution, error) {
	const query = `SELECT id, year, equipment_type_id, quantity, created_at, updated_at FROM equipment_distributions WHERE id = $1`
	var distribution models.EquipmentDistribution
	if err := r.db.GetContext(ctx, &distribution, query, id); err != nil {
		return nil, err
	}
	return &distribution, nil
}

// CreateDistribution inserts a new yearly distribution.
func (r *EquipmentRepository) CreateDistribution(ctx context.Context, distribution *models.EquipmentDistribution) error {
	if distribution.ID == "" {
		distribution.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	distribution.CreatedAt = now
	distribution.UpdatedAt = now
	const query = `INSERT INTO equipment_distributions (id, year, equipment_type_id, quantity, created_at, updated_at) VALUES (:id, :year, :equipment_type_id, :quantity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, distribution); err != nil {
		return fmt.Errorf("create distribution: %w", err)
	}
	return nil
}

// ListReceiptsByDistribution returns every receipt for a distribution.
func (r *EquipmentRepository) ListReceiptsByDistribution(ctx context.Context, distributionID string) ([]models.EquipmentReceipt, error) {
	query := fmt.Sprintf("SELECT %s FROM equipment_receipts WHERE distribution_id = $1 ORDER BY created_at ASC", receiptColumns)
	var receipts []models.EquipmentReceipt
	if err := r.db.SelectContext(ctx, &receipts, query, distributionID); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// FindReceiptByID loads a receipt by identifier.
func (r *EquipmentRepository) FindReceiptByID(ctx context.Context, id string) (*models.EquipmentReceipt, error) {
	query := fmt.Sprintf("SELECT %s FROM equipment_receipts WHERE id = $1", receiptColumns)
	var receipt models.EquipmentReceipt
	if err := r.db.GetContext(ctx, &receipt, query, id); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// CountReceipts returns the receipt count for a distribution.
func (r *EquipmentRepository) CountReceipts(ctx context.Context, distributionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM equipment_receipts WHERE distribution_id = $1`, distributionID); err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return count, nil
}

// ReceiptedUserIDs returns, out of the candidates, those who already hold a
// receipt for the distribution.
func (r *EquipmentRepository) ReceiptedUserIDs(ctx context.Context, distributionID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT user_id FROM equipment_receipts WHERE distribution_id = $1 AND user_id = ANY($2)`
	var existing []string
	if err := r.db.SelectContext(ctx, &existing, query, distributionID, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("find receipted users: %w", err)
	}
	return existing, nil
}

// CreateReceipts inserts every receipt in one transaction.
func (r *EquipmentRepository) CreateReceipts(ctx context.Context, receipts []*models.EquipmentReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create receipts tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO equipment_receipts (id, user_id, distribution_id, received, received_at, notes, created_at, updated_at) VALUES (:id, :user_id, :distribution_id, :received, :received_at, :notes, :created_at, :updated_at)`
	for _, receipt := range receipts {
		if receipt.ID == "" {
			receipt.ID = uuid.NewString()
		}
		receipt.CreatedAt = now
		receipt.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, receipt); err != nil {
			return fmt.Errorf("create receipt for %s: %w", receipt.UserID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create receipts tx: %w", err)
	}
	return nil
}

// UpdateReceipt persists the received flag, timestamp and notes.
func (r *EquipmentRepository) UpdateReceipt(ctx context.Context, receipt *models.EquipmentReceipt) error {
	receipt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE equipment_receipts SET received = :received, received_at = :received_at, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, receipt); err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	return nil
}
