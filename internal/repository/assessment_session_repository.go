package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khaind/macad-api/internal/models"
)

const sessionColumns = "id, name, week_start_date, week_end_date, notes, created_at, updated_at"

// AssessmentSessionRepository handles persistence for weekly sessions.
type AssessmentSessionRepository struct {
	db *sqlx.DB
}

// NewAssessmentSessionRepository instantiates a session repository.
func NewAssessmentSessionRepository(db *sqlx.DB) *AssessmentSessionRepository {
	return &AssessmentSessionRepository{db: db}
}

// List returns sessions ordered by week, newest first.
func (r *AssessmentSessionRepository) List(ctx context.Context) ([]models.FitnessAssessmentSession, error) {
	query := fmt.Sprintf("SELECT %s FROM fitness_assessment_sessions ORDER BY week_start_date DESC", sessionColumns)
	var sessions []models.FitnessAssessmentSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session by identifier.
func (r *AssessmentSessionRepository) FindByID(ctx context.Context, id string) (*models.FitnessAssessmentSession, error) {
	query := fmt.Sprintf("SELECT %s FROM fitness_assessment_sessions WHERE id = $1", sessionColumns)
	var session models.FitnessAssessmentSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByWeek loads the session keyed on an exact (Monday, Sunday) pair.
func (r *AssessmentSessionRepository) FindByWeek(ctx context.Context, weekStart, weekEnd time.Time) (*models.FitnessAssessmentSession, error) {
	query := fmt.Sprintf("SELECT %s FROM fitness_assessment_sessions WHERE week_start_date = $1 AND week_end_date = $2", sessionColumns)
	var session models.FitnessAssessmentSession
	if err := r.db.GetContext(ctx, &session, query, weekStart, weekEnd); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new session record.
func (r *AssessmentSessionRepository) Create(ctx context.Context, session *models.FitnessAssessmentSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO fitness_assessment_sessions (id, name, week_start_date, week_end_date, notes, created_at, updated_at) VALUES (:id, :name, :week_start_date, :week_end_date, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}
