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

const termColumns = "id, name, start_date, end_date, roster_deadline, grade_entry_date, deleted_at, created_at, updated_at"

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns non-deleted terms matching provided filters.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	base := "FROM terms WHERE deleted_at IS NULL"
	var conditions []string
	var args []interface{}

	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, filter.Name)
	}
	if filter.Year != "" {
		conditions = append(conditions, fmt.Sprintf("name LIKE $%d", len(args)+1))
		args = append(args, filter.Year+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "start_date": true, "end_date": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, sortBy, order, size, offset)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// FindByID loads a non-deleted term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE id = $1 AND deleted_at IS NULL", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindContaining returns the term whose [start_date, end_date] covers the
// provided instant, if any.
func (r *TermRepository) FindContaining(ctx context.Context, at time.Time) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE deleted_at IS NULL AND start_date <= $1 AND end_date >= $1 LIMIT 1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, at); err != nil {
		return nil, err
	}
	return &term, nil
}

// ListOverlapping returns non-deleted terms whose [start_date, end_date]
// range intersects the given range, inclusive at both boundaries.
func (r *TermRepository) ListOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]models.Term, error) {
	base := fmt.Sprintf("SELECT %s FROM terms WHERE deleted_at IS NULL AND start_date <= $2 AND end_date >= $1", termColumns)
	args := []interface{}{start, end}
	if excludeID != "" {
		base += " AND id <> $3"
		args = append(args, excludeID)
	}
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, base, args...); err != nil {
		return nil, fmt.Errorf("list overlapping terms: %w", err)
	}
	return terms, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, name, start_date, end_date, roster_deadline, grade_entry_date, created_at, updated_at) VALUES (:id, :name, :start_date, :end_date, :roster_deadline, :grade_entry_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies an existing term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, start_date = :start_date, end_date = :end_date, roster_deadline = :roster_deadline, grade_entry_date = :grade_entry_date, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// SoftDelete flags a term as deleted without removing the row.
func (r *TermRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `UPDATE terms SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, now); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountCourses returns the number of non-deleted courses referencing the term.
func (r *TermRepository) CountCourses(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM courses WHERE term_id = $1 AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count term courses: %w", err)
	}
	return count, nil
}
