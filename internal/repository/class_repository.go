package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/khaind/macad-api/internal/models"
)

const membershipColumns = "id, user_id, class_id, role, status, reason, note, created_at, updated_at"

// ClassRepository handles persistence for class rooms and memberships.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository instantiates a class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListClasses returns every class.
func (r *ClassRepository) ListClasses(ctx context.Context) ([]models.ClassRoom, error) {
	const query = `SELECT id, name, manager_id, created_at, updated_at FROM class_rooms ORDER BY name ASC`
	var classes []models.ClassRoom
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindClassByID loads a class by identifier.
func (r *ClassRepository) FindClassByID(ctx context.Context, id string) (*models.ClassRoom, error) {
	const query = `SELECT id, name, manager_id, created_at, updated_at FROM class_rooms WHERE id = $1`
	var class models.ClassRoom
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ExistsClassByName checks class name uniqueness.
func (r *ClassRepository) ExistsClassByName(ctx context.Context, name, excludeID string) (bool, error) {
	base := "SELECT 1 FROM class_rooms WHERE name = $1"
	args := []interface{}{name}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class name: %w", err)
	}
	return true, nil
}

// ExistsClassByManager checks the one-manager-per-class invariant.
func (r *ClassRepository) ExistsClassByManager(ctx context.Context, managerID, excludeID string) (bool, error) {
	base := "SELECT 1 FROM class_rooms WHERE manager_id = $1"
	args := []interface{}{managerID}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class manager: %w", err)
	}
	return true, nil
}

// CreateClass inserts a new class room.
func (r *ClassRepository) CreateClass(ctx context.Context, class *models.ClassRoom) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO class_rooms (id, name, manager_id, created_at, updated_at) VALUES (:id, :name, :manager_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// UpdateClass modifies an existing class room.
func (r *ClassRepository) UpdateClass(ctx context.Context, class *models.ClassRoom) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_rooms SET name = :name, manager_id = :manager_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// DeleteClass removes a class room permanently.
func (r *ClassRepository) DeleteClass(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM class_rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CountMembers returns the number of memberships in a class.
func (r *ClassRepository) CountMembers(ctx context.Context, classID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student_classes WHERE class_id = $1`, classID); err != nil {
		return 0, fmt.Errorf("count class members: %w", err)
	}
	return count, nil
}

// ListMembers returns membership details for a class.
func (r *ClassRepository) ListMembers(ctx context.Context, classID string) ([]models.StudentClassDetail, error) {
	const query = `SELECT sc.id, sc.user_id, sc.class_id, sc.role, sc.status, sc.reason, sc.note, sc.created_at, sc.updated_at, u.full_name AS student_name, u.email AS student_email FROM student_classes sc JOIN users u ON u.id = sc.user_id WHERE sc.class_id = $1 ORDER BY u.full_name ASC`
	var members []models.StudentClassDetail
	if err := r.db.SelectContext(ctx, &members, query, classID); err != nil {
		return nil, fmt.Errorf("list class members: %w", err)
	}
	return members, nil
}

// FindMembershipByID loads a membership by identifier.
func (r *ClassRepository) FindMembershipByID(ctx context.Context, id string) (*models.StudentClass, error) {
	query := fmt.Sprintf("SELECT %s FROM student_classes WHERE id = $1", membershipColumns)
	var membership models.StudentClass
	if err := r.db.GetContext(ctx, &membership, query, id); err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindMembershipByUser loads the membership a student holds in any class.
func (r *ClassRepository) FindMembershipByUser(ctx context.Context, userID string) (*models.StudentClass, error) {
	query := fmt.Sprintf("SELECT %s FROM student_classes WHERE user_id = $1", membershipColumns)
	var membership models.StudentClass
	if err := r.db.GetContext(ctx, &membership, query, userID); err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindMonitor loads the monitor membership for a class, if present.
func (r *ClassRepository) FindMonitor(ctx context.Context, classID string) (*models.StudentClass, error) {
	query := fmt.Sprintf("SELECT %s FROM student_classes WHERE class_id = $1 AND role = $2", membershipColumns)
	var membership models.StudentClass
	if err := r.db.GetContext(ctx, &membership, query, classID, models.ClassRoleMonitor); err != nil {
		return nil, err
	}
	return &membership, nil
}

// CreateMembership inserts a new student class membership.
func (r *ClassRepository) CreateMembership(ctx context.Context, membership *models.StudentClass) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = now
	}
	membership.UpdatedAt = now

	const query = `INSERT INTO student_classes (id, user_id, class_id, role, status, reason, note, created_at, updated_at) VALUES (:id, :user_id, :class_id, :role, :status, :reason, :note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// UpdateMembership modifies an existing membership.
func (r *ClassRepository) UpdateMembership(ctx context.Context, membership *models.StudentClass) error {
	membership.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_classes SET role = :role, status = :status, reason = :reason, note = :note, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	return nil
}

// DeleteMembership removes a membership permanently.
func (r *ClassRepository) DeleteMembership(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM student_classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// ReplaceMonitor demotes the current monitor (if any) to plain student and
// promotes the target membership, atomically.
func (r *ClassRepository) ReplaceMonitor(ctx context.Context, classID, membershipID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace monitor tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE student_classes SET role = $1, updated_at = $2 WHERE class_id = $3 AND role = $4 AND id <> $5`, models.ClassRoleStudent, now, classID, models.ClassRoleMonitor, membershipID); err != nil {
		return fmt.Errorf("demote monitor: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE student_classes SET role = $1, updated_at = $2 WHERE id = $3`, models.ClassRoleMonitor, now, membershipID); err != nil {
		return fmt.Errorf("promote monitor: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace monitor tx: %w", err)
	}
	return nil
}
