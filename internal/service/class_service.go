package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type classRepository interface {
	ListClasses(ctx context.Context) ([]models.ClassRoom, error)
	FindClassByID(ctx context.Context, id string) (*models.ClassRoom, error)
	ExistsClassByName(ctx context.Context, name, excludeID string) (bool, error)
	ExistsClassByManager(ctx context.Context, managerID, excludeID string) (bool, error)
	CreateClass(ctx context.Context, class *models.ClassRoom) error
	UpdateClass(ctx context.Context, class *models.ClassRoom) error
	DeleteClass(ctx context.Context, id string) error
	CountMembers(ctx context.Context, classID string) (int, error)
	ListMembers(ctx context.Context, classID string) ([]models.StudentClassDetail, error)
	FindMembershipByID(ctx context.Context, id string) (*models.StudentClass, error)
	FindMembershipByUser(ctx context.Context, userID string) (*models.StudentClass, error)
	FindMonitor(ctx context.Context, classID string) (*models.StudentClass, error)
	CreateMembership(ctx context.Context, membership *models.StudentClass) error
	UpdateMembership(ctx context.Context, membership *models.StudentClass) error
	DeleteMembership(ctx context.Context, id string) error
	ReplaceMonitor(ctx context.Context, classID, membershipID string) error
}

// CreateClassRequest describes payload for creating class rooms.
type CreateClassRequest struct {
	Name      string  `json:"name" validate:"required"`
	ManagerID *string `json:"manager_id" validate:"omitempty"`
}

// UpdateClassRequest updates mutable fields on a class room.
type UpdateClassRequest struct {
	Name      string  `json:"name" validate:"required"`
	ManagerID *string `json:"manager_id" validate:"omitempty"`
}

// AddStudentRequest places a student into a class.
type AddStudentRequest struct {
	UserID string           `json:"user_id" validate:"required"`
	Role   models.ClassRole `json:"role" validate:"omitempty,oneof=MONITOR VICE_MONITOR STUDENT"`
}

// UpdateMembershipRequest updates role, standing or notes on a membership.
type UpdateMembershipRequest struct {
	Status *models.MembershipStatus `json:"status" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
	Reason *string                  `json:"reason"`
	Note   *string                  `json:"note"`
}

// ClassService manages class rooms and their leadership structure.
type ClassService struct {
	classes   classRepository
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService creates a new class service instance.
func NewClassService(classes classRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, users: users, validator: validate, logger: logger}
}

// List returns every class room.
func (s *ClassService) List(ctx context.Context) ([]models.ClassRoom, error) {
	classes, err := s.classes.ListClasses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassRoom, error) {
	class, err := s.classes.FindClassByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *ClassService) checkManagerAssignment(ctx context.Context, managerID, excludeClassID string) error {
	manager, err := s.users.FindByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "manager not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
	}
	if manager.Role != models.RoleManager {
		return appErrors.Clone(appErrors.ErrBusinessRule, "manager_id must reference a user with the manager role")
	}

	assigned, err := s.classes.ExistsClassByManager(ctx, managerID, excludeClassID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check manager assignment")
	}
	if assigned {
		return appErrors.Clone(appErrors.ErrBusinessRule, "manager already oversees another class")
	}
	return nil
}

// Create adds a new class room with an optional managing officer.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	exists, err := s.classes.ExistsClassByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("class name %s is already in use", req.Name))
	}

	if req.ManagerID != nil {
		if err := s.checkManagerAssignment(ctx, *req.ManagerID, ""); err != nil {
			return nil, err
		}
	}

	class := &models.ClassRoom{Name: req.Name, ManagerID: req.ManagerID}
	if err := s.classes.CreateClass(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies an existing class room.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != class.Name {
		exists, err := s.classes.ExistsClassByName(ctx, req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("class name %s is already in use", req.Name))
		}
	}

	if req.ManagerID != nil {
		if err := s.checkManagerAssignment(ctx, *req.ManagerID, id); err != nil {
			return nil, err
		}
	}

	class.Name = req.Name
	class.ManagerID = req.ManagerID
	if err := s.classes.UpdateClass(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes an empty class room.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.classes.CountMembers(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class members")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "class still has students assigned")
	}

	if err := s.classes.DeleteClass(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

// ListMembers returns the roster of a class.
func (s *ClassService) ListMembers(ctx context.Context, classID string) ([]models.StudentClassDetail, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	members, err := s.classes.ListMembers(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class members")
	}
	return members, nil
}

// AddStudent places a student into a class. A student may belong to at most
// one class across the academy, and a class holds at most one monitor.
func (s *ClassService) AddStudent(ctx context.Context, classID string, req AddStudentRequest) (*models.StudentClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}

	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "only students can join classes")
	}

	if existing, err := s.classes.FindMembershipByUser(ctx, req.UserID); err == nil {
		return nil, appErrors.CloneWithDetails(appErrors.ErrBusinessRule, "student already belongs to a class", map[string]interface{}{"class_id": existing.ClassID})
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check memberships")
	}

	role := req.Role
	if role == "" {
		role = models.ClassRoleStudent
	}
	if role == models.ClassRoleMonitor {
		if _, err := s.classes.FindMonitor(ctx, classID); err == nil {
			return nil, appErrors.Clone(appErrors.ErrBusinessRule, "class already has a monitor")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check monitor")
		}
	}

	membership := &models.StudentClass{
		UserID:  req.UserID,
		ClassID: classID,
		Role:    role,
		Status:  models.MembershipStatusActive,
	}
	if err := s.classes.CreateMembership(ctx, membership); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create membership")
	}
	return membership, nil
}

func (s *ClassService) membershipInClass(ctx context.Context, classID, userID string) (*models.StudentClass, error) {
	membership, err := s.classes.FindMembershipByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no class membership")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	if membership.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "student does not belong to this class")
	}
	return membership, nil
}

// AssignMonitor promotes a member to monitor, demoting the current monitor to
// plain student in the same transaction.
func (s *ClassService) AssignMonitor(ctx context.Context, classID, userID string) (*models.StudentClass, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	membership, err := s.membershipInClass(ctx, classID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.classes.ReplaceMonitor(ctx, classID, membership.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign monitor")
	}
	membership.Role = models.ClassRoleMonitor
	return membership, nil
}

// AssignViceMonitor promotes a member to vice monitor. The sitting monitor
// cannot hold both roles.
func (s *ClassService) AssignViceMonitor(ctx context.Context, classID, userID string) (*models.StudentClass, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	membership, err := s.membershipInClass(ctx, classID, userID)
	if err != nil {
		return nil, err
	}
	if membership.Role == models.ClassRoleMonitor {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "the class monitor cannot also serve as vice monitor")
	}

	membership.Role = models.ClassRoleViceMonitor
	if err := s.classes.UpdateMembership(ctx, membership); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign vice monitor")
	}
	return membership, nil
}

// UpdateMembership changes standing or notes. Suspending requires a reason.
func (s *ClassService) UpdateMembership(ctx context.Context, membershipID string, req UpdateMembershipRequest) (*models.StudentClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}

	membership, err := s.classes.FindMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}

	if req.Status != nil {
		if *req.Status == models.MembershipStatusSuspended {
			if req.Reason == nil || *req.Reason == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required when suspending a student")
			}
			membership.Reason = *req.Reason
		}
		membership.Status = *req.Status
	}
	if req.Reason != nil {
		membership.Reason = *req.Reason
	}
	if req.Note != nil {
		membership.Note = *req.Note
	}

	if err := s.classes.UpdateMembership(ctx, membership); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update membership")
	}
	return membership, nil
}

// RemoveStudent takes a student out of their class.
func (s *ClassService) RemoveStudent(ctx context.Context, membershipID string) error {
	if _, err := s.classes.FindMembershipByID(ctx, membershipID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	if err := s.classes.DeleteMembership(ctx, membershipID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student from class")
	}
	return nil
}
