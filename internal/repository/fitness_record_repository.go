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

const fitnessRecordColumns = "id, user_id, manager_id, fitness_test_id, assessment_session_id, performance, rating, notes, created_at, updated_at"

// FitnessRecordRepository handles persistence for student fitness records.
type FitnessRecordRepository struct {
	db *sqlx.DB
}

// NewFitnessRecordRepository instantiates a fitness record repository.
func NewFitnessRecordRepository(db *sqlx.DB) *FitnessRecordRepository {
	return &FitnessRecordRepository{db: db}
}

// List returns fitness records matching provided filters.
func (r *FitnessRecordRepository) List(ctx context.Context, filter models.FitnessRecordFilter) ([]models.StudentFitnessRecord, int, error) {
	base := "FROM student_fitness_records WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.TestID != "" {
		conditions = append(conditions, fmt.Sprintf("fitness_test_id = $%d", len(args)+1))
		args = append(args, filter.TestID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("assessment_session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", fitnessRecordColumns, base, size, offset)

	var records []models.StudentFitnessRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fitness records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fitness records: %w", err)
	}

	return records, total, nil
}

// FindByKey loads the record for a (student, test, session) triple.
func (r *FitnessRecordRepository) FindByKey(ctx context.Context, userID, testID, sessionID string) (*models.StudentFitnessRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM student_fitness_records WHERE user_id = $1 AND fitness_test_id = $2 AND assessment_session_id = $3", fitnessRecordColumns)
	var record models.StudentFitnessRecord
	if err := r.db.GetContext(ctx, &record, query, userID, testID, sessionID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ExistingUserIDs returns, out of the candidate students, those who already
// hold a record for the (test, session) pair.
func (r *FitnessRecordRepository) ExistingUserIDs(ctx context.Context, testID, sessionID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT user_id FROM student_fitness_records WHERE fitness_test_id = $1 AND assessment_session_id = $2 AND user_id = ANY($3)`
	var existing []string
	if err := r.db.SelectContext(ctx, &existing, query, testID, sessionID, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("find existing fitness records: %w", err)
	}
	return existing, nil
}

// Create inserts a single record.
func (r *FitnessRecordRepository) Create(ctx context.Context, record *models.StudentFitnessRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO student_fitness_records (id, user_id, manager_id, fitness_test_id, assessment_session_id, performance, rating, notes, created_at, updated_at) VALUES (:id, :user_id, :manager_id, :fitness_test_id, :assessment_session_id, :performance, :rating, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create fitness record: %w", err)
	}
	return nil
}

// CreateBatch inserts every record in one transaction; either all rows commit
// or none do.
func (r *FitnessRecordRepository) CreateBatch(ctx context.Context, records []*models.StudentFitnessRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch fitness tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO student_fitness_records (id, user_id, manager_id, fitness_test_id, assessment_session_id, performance, rating, notes, created_at, updated_at) VALUES (:id, :user_id, :manager_id, :fitness_test_id, :assessment_session_id, :performance, :rating, :notes, :created_at, :updated_at)`
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.CreatedAt = now
		record.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, record); err != nil {
			return fmt.Errorf("create fitness record %s: %w", record.UserID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch fitness tx: %w", err)
	}
	return nil
}

// Delete removes a record permanently.
func (r *FitnessRecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM student_fitness_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete fitness record: %w", err)
	}
	return nil
}

// CountSince counts records created at or after the given instant.
func (r *FitnessRecordRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student_fitness_records WHERE created_at >= $1`, since); err != nil {
		return 0, fmt.Errorf("count fitness records since: %w", err)
	}
	return count, nil
}
