package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/khaind/macad-api/internal/models"
)

const allowanceColumns = "id, user_id, month, year, amount, received, received_at, notes, created_at, updated_at"

// AllowanceRepository handles persistence for monthly allowances.
type AllowanceRepository struct {
	db *sqlx.DB
}

// NewAllowanceRepository instantiates an allowance repository.
func NewAllowanceRepository(db *sqlx.DB) *AllowanceRepository {
	return &AllowanceRepository{db: db}
}

// List returns allowances matching provided filters.
func (r *AllowanceRepository) List(ctx context.Context, filter models.AllowanceFilter) ([]models.MonthlyAllowance, int, error) {
	base := "FROM monthly_allowances WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Month > 0 {
		conditions = append(conditions, fmt.Sprintf("month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Received != nil {
		conditions = append(conditions, fmt.Sprintf("received = $%d", len(args)+1))
		args = append(args, *filter.Received)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY year DESC, month DESC LIMIT %d OFFSET %d", allowanceColumns, base, size, offset)

	var allowances []models.MonthlyAllowance
	if err := r.db.SelectContext(ctx, &allowances, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list allowances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count allowances: %w", err)
	}

	return allowances, total, nil
}

// FindByID loads an allowance by identifier.
func (r *AllowanceRepository) FindByID(ctx context.Context, id string) (*models.MonthlyAllowance, error) {
	query := fmt.Sprintf("SELECT %s FROM monthly_allowances WHERE id = $1", allowanceColumns)
	var allowance models.MonthlyAllowance
	if err := r.db.GetContext(ctx, &allowance, query, id); err != nil {
		return nil, err
	}
	return &allowance, nil
}

// ExistingUserIDs returns, out of the candidates, those who already hold an
// allowance for the (month, year) pair.
func (r *AllowanceRepository) ExistingUserIDs(ctx context.Context, month, year int, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT user_id FROM monthly_allowances WHERE month = $1 AND year = $2 AND user_id = ANY($3)`
	var existing []string
	if err := r.db.SelectContext(ctx, &existing, query, month, year, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("find existing allowances: %w", err)
	}
	return existing, nil
}

// CreateBatch inserts every allowance in one transaction.
func (r *AllowanceRepository) CreateBatch(ctx context.Context, allowances []*models.MonthlyAllowance) error {
	if len(allowances) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create allowances tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO monthly_allowances (id, user_id, month, year, amount, received, received_at, notes, created_at, updated_at) VALUES (:id, :user_id, :month, :year, :amount, :received, :received_at, :notes, :created_at, :updated_at)`
	for _, allowance := range allowances {
		if allowance.ID == "" {
			allowance.ID = uuid.NewString()
		}
		allowance.CreatedAt = now
		allowance.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, allowance); err != nil {
			return fmt.Errorf("create allowance for %s: %w", allowance.UserID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create allowances tx: %w", err)
	}
	return nil
}

// Update persists the received flag, timestamp and notes.
func (r *AllowanceRepository) Update(ctx context.Context, allowance *models.MonthlyAllowance) error {
	allowance.UpdatedAt = time.Now().UTC()
	const query = `UPDATE monthly_allowances SET amount = :amount, received = :received, received_at = :received_at, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, allowance); err != nil {
		return fmt.Errorf("update allowance: %w", err)
	}
	return nil
}
