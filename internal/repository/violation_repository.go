package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khaind/macad-api/internal/models"
)

const violationColumns = "id, student_id, manager_id, violation_name, violation_date, created_at, updated_at"

// ViolationRepository handles persistence for discipline violation records.
type ViolationRepository struct {
	db *sqlx.DB
}

// NewViolationRepository instantiates a violation repository.
func NewViolationRepository(db *sqlx.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// List returns violations matching provided filters.
func (r *ViolationRepository) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, int, error) {
	base := "FROM violation_records WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ManagerID != "" {
		conditions = append(conditions, fmt.Sprintf("manager_id = $%d", len(args)+1))
		args = append(args, filter.ManagerID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("violation_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("violation_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY violation_date DESC LIMIT %d OFFSET %d", violationColumns, base, size, offset)

	var violations []models.ViolationRecord
	if err := r.db.SelectContext(ctx, &violations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list violations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count violations: %w", err)
	}

	return violations, total, nil
}

// FindByID loads a violation by identifier.
func (r *ViolationRepository) FindByID(ctx context.Context, id string) (*models.ViolationRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM violation_records WHERE id = $1", violationColumns)
	var violation models.ViolationRecord
	if err := r.db.GetContext(ctx, &violation, query, id); err != nil {
		return nil, err
	}
	return &violation, nil
}

// Create inserts a new violation record.
func (r *ViolationRepository) Create(ctx context.Context, violation *models.ViolationRecord) error {
	if violation.ID == "" {
		violation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if violation.CreatedAt.IsZero() {
		violation.CreatedAt = now
	}
	violation.UpdatedAt = now

	const query = `INSERT INTO violation_records (id, student_id, manager_id, violation_name, violation_date, created_at, updated_at) VALUES (:id, :student_id, :manager_id, :violation_name, :violation_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, violation); err != nil {
		return fmt.Errorf("create violation: %w", err)
	}
	return nil
}

// Update modifies an existing violation record.
func (r *ViolationRepository) Update(ctx context.Context, violation *models.ViolationRecord) error {
	violation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE violation_records SET violation_name = :violation_name, violation_date = :violation_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, violation); err != nil {
		return fmt.Errorf("update violation: %w", err)
	}
	return nil
}

// Delete removes a violation record permanently.
func (r *ViolationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM violation_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete violation: %w", err)
	}
	return nil
}

// CountSince counts violations created at or after the given instant.
func (r *ViolationRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM violation_records WHERE created_at >= $1`, since); err != nil {
		return 0, fmt.Errorf("count violations since: %w", err)
	}
	return count, nil
}
