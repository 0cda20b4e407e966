package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khaind/macad-api/internal/models"
)

const fitnessTestColumns = "id, name, unit, higher_is_better, deleted_at, created_at, updated_at"
const thresholdColumns = "id, fitness_test_id, excellent_threshold, good_threshold, pass_threshold, created_at, updated_at"

// FitnessTestRepository handles persistence for fitness tests and thresholds.
type FitnessTestRepository struct {
	db *sqlx.DB
}

// NewFitnessTestRepository instantiates a fitness test repository.
func NewFitnessTestRepository(db *sqlx.DB) *FitnessTestRepository {
	return &FitnessTestRepository{db: db}
}

// List returns non-deleted fitness tests with their thresholds attached.
func (r *FitnessTestRepository) List(ctx context.Context) ([]models.FitnessTest, error) {
	query := fmt.Sprintf("SELECT %s FROM fitness_tests WHERE deleted_at IS NULL ORDER BY name ASC", fitnessTestColumns)
	var tests []models.FitnessTest
	if err := r.db.SelectContext(ctx, &tests, query); err != nil {
		return nil, fmt.Errorf("list fitness tests: %w", err)
	}
	for i := range tests {
		threshold, err := r.FindThresholdByTest(ctx, tests[i].ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		tests[i].Threshold = threshold
	}
	return tests, nil
}

// FindByID loads a non-deleted test with its threshold attached when present.
func (r *FitnessTestRepository) FindByID(ctx context.Context, id string) (*models.FitnessTest, error) {
	query := fmt.Sprintf("SELECT %s FROM fitness_tests WHERE id = $1 AND deleted_at IS NULL", fitnessTestColumns)
	var test models.FitnessTest
	if err := r.db.GetContext(ctx, &test, query, id); err != nil {
		return nil, err
	}
	threshold, err := r.FindThresholdByTest(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	test.Threshold = threshold
	return &test, nil
}

// FindThresholdByTest loads the threshold row for a test.
func (r *FitnessTestRepository) FindThresholdByTest(ctx context.Context, testID string) (*models.FitnessTestThreshold, error) {
	query := fmt.Sprintf("SELECT %s FROM fitness_test_thresholds WHERE fitness_test_id = $1", thresholdColumns)
	var threshold models.FitnessTestThreshold
	if err := r.db.GetContext(ctx, &threshold, query, testID); err != nil {
		return nil, err
	}
	return &threshold, nil
}

// Create inserts a test and its threshold in one transaction.
func (r *FitnessTestRepository) Create(ctx context.Context, test *models.FitnessTest, threshold *models.FitnessTestThreshold) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create fitness test tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	test.CreatedAt = now
	test.UpdatedAt = now

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO fitness_tests (id, name, unit, higher_is_better, created_at, updated_at) VALUES (:id, :name, :unit, :higher_is_better, :created_at, :updated_at)`, test); err != nil {
		return fmt.Errorf("create fitness test: %w", err)
	}

	if threshold != nil {
		if threshold.ID == "" {
			threshold.ID = uuid.NewString()
		}
		threshold.FitnessTestID = test.ID
		threshold.CreatedAt = now
		threshold.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO fitness_test_thresholds (id, fitness_test_id, excellent_threshold, good_threshold, pass_threshold, created_at, updated_at) VALUES (:id, :fitness_test_id, :excellent_threshold, :good_threshold, :pass_threshold, :created_at, :updated_at)`, threshold); err != nil {
			return fmt.Errorf("create fitness threshold: %w", err)
		}
		test.Threshold = threshold
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create fitness test tx: %w", err)
	}
	return nil
}

// Update modifies an existing test.
func (r *FitnessTestRepository) Update(ctx context.Context, test *models.FitnessTest) error {
	test.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fitness_tests SET name = :name, unit = :unit, higher_is_better = :higher_is_better, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, test); err != nil {
		return fmt.Errorf("update fitness test: %w", err)
	}
	return nil
}

// UpsertThreshold inserts or replaces the threshold row for a test.
func (r *FitnessTestRepository) UpsertThreshold(ctx context.Context, threshold *models.FitnessTestThreshold) error {
	if threshold.ID == "" {
		threshold.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if threshold.CreatedAt.IsZero() {
		threshold.CreatedAt = now
	}
	threshold.UpdatedAt = now
	const query = `INSERT INTO fitness_test_thresholds (id, fitness_test_id, excellent_threshold, good_threshold, pass_threshold, created_at, updated_at) VALUES (:id, :fitness_test_id, :excellent_threshold, :good_threshold, :pass_threshold, :created_at, :updated_at) ON CONFLICT (fitness_test_id) DO UPDATE SET excellent_threshold = EXCLUDED.excellent_threshold, good_threshold = EXCLUDED.good_threshold, pass_threshold = EXCLUDED.pass_threshold, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, threshold); err != nil {
		return fmt.Errorf("upsert fitness threshold: %w", err)
	}
	return nil
}

// SoftDelete flags a test as deleted.
func (r *FitnessTestRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `UPDATE fitness_tests SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, now); err != nil {
		return fmt.Errorf("delete fitness test: %w", err)
	}
	return nil
}

// CountRecords returns the number of records referencing the test.
func (r *FitnessTestRepository) CountRecords(ctx context.Context, testID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student_fitness_records WHERE fitness_test_id = $1`, testID); err != nil {
		return 0, fmt.Errorf("count fitness records: %w", err)
	}
	return count, nil
}
