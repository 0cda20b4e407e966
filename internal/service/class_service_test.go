package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
)

type mockClassRepo struct {
	classes        map[string]models.ClassRoom
	memberships    map[string]models.StudentClass // by user ID
	monitor        *models.StudentClass
	nameTaken      bool
	managerTaken   bool
	memberCount    int
	createdClass   *models.ClassRoom
	createdMember  *models.StudentClass
	updatedMember  *models.StudentClass
	replacedTarget string
}

func (m *mockClassRepo) ListClasses(ctx context.Context) ([]models.ClassRoom, error) {
	return nil, nil
}

func (m *mockClassRepo) FindClassByID(ctx context.Context, id string) (*models.ClassRoom, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ExistsClassByName(ctx context.Context, name, excludeID string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockClassRepo) ExistsClassByManager(ctx context.Context, managerID, excludeID string) (bool, error) {
	return m.managerTaken, nil
}

func (m *mockClassRepo) CreateClass(ctx context.Context, class *models.ClassRoom) error {
	class.ID = "new-class"
	m.createdClass = class
	return nil
}

func (m *mockClassRepo) UpdateClass(ctx context.Context, class *models.ClassRoom) error {
	return nil
}

func (m *mockClassRepo) DeleteClass(ctx context.Context, id string) error {
	return nil
}

func (m *mockClassRepo) CountMembers(ctx context.Context, classID string) (int, error) {
	return m.memberCount, nil
}

func (m *mockClassRepo) ListMembers(ctx context.Context, classID string) ([]models.StudentClassDetail, error) {
	return nil, nil
}

func (m *mockClassRepo) FindMembershipByID(ctx context.Context, id string) (*models.StudentClass, error) {
	for _, member := range m.memberships {
		if member.ID == id {
			return &member, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindMembershipByUser(ctx context.Context, userID string) (*models.StudentClass, error) {
	if member, ok := m.memberships[userID]; ok {
		return &member, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindMonitor(ctx context.Context, classID string) (*models.StudentClass, error) {
	if m.monitor != nil {
		return m.monitor, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) CreateMembership(ctx context.Context, membership *models.StudentClass) error {
	membership.ID = "new-membership"
	m.createdMember = membership
	return nil
}

func (m *mockClassRepo) UpdateMembership(ctx context.Context, membership *models.StudentClass) error {
	m.updatedMember = membership
	return nil
}

func (m *mockClassRepo) DeleteMembership(ctx context.Context, id string) error {
	return nil
}

func (m *mockClassRepo) ReplaceMonitor(ctx context.Context, classID, membershipID string) error {
	m.replacedTarget = membershipID
	return nil
}

func classFixture() (*mockClassRepo, *mockUserReader) {
	classes := &mockClassRepo{classes: map[string]models.ClassRoom{"cl1": {ID: "cl1", Name: "Alpha"}}}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", Role: models.RoleStudent},
		"s2": {ID: "s2", Role: models.RoleStudent},
		"m1": {ID: "m1", Role: models.RoleManager},
	}}
	return classes, users
}

func TestClassServiceAddStudent(t *testing.T) {
	classes, users := classFixture()
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	membership, err := svc.AddStudent(context.Background(), "cl1", AddStudentRequest{UserID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, models.ClassRoleStudent, membership.Role)
	assert.Equal(t, models.MembershipStatusActive, membership.Status)
}

func TestClassServiceAddStudentAlreadyInClass(t *testing.T) {
	classes, users := classFixture()
	classes.memberships = map[string]models.StudentClass{"s1": {ID: "mem1", UserID: "s1", ClassID: "other"}}
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	_, err := svc.AddStudent(context.Background(), "cl1", AddStudentRequest{UserID: "s1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Equal(t, "other", appErr.Details["class_id"])
}

func TestClassServiceAddSecondMonitorRejected(t *testing.T) {
	classes, users := classFixture()
	classes.monitor = &models.StudentClass{ID: "mem-mon", Role: models.ClassRoleMonitor}
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	_, err := svc.AddStudent(context.Background(), "cl1", AddStudentRequest{UserID: "s1", Role: models.ClassRoleMonitor})
	require.Error(t, err)
}

func TestClassServiceAssignMonitorReplacesIncumbent(t *testing.T) {
	classes, users := classFixture()
	classes.memberships = map[string]models.StudentClass{"s1": {ID: "mem1", UserID: "s1", ClassID: "cl1", Role: models.ClassRoleStudent}}
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	membership, err := svc.AssignMonitor(context.Background(), "cl1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ClassRoleMonitor, membership.Role)
	assert.Equal(t, "mem1", classes.replacedTarget)
}

func TestClassServiceAssignMonitorOutsideClass(t *testing.T) {
	classes, users := classFixture()
	classes.memberships = map[string]models.StudentClass{"s1": {ID: "mem1", UserID: "s1", ClassID: "other"}}
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	_, err := svc.AssignMonitor(context.Background(), "cl1", "s1")
	require.Error(t, err)
	assert.Empty(t, classes.replacedTarget)
}

func TestClassServiceViceMonitorCannotBeMonitor(t *testing.T) {
	classes, users := classFixture()
	classes.memberships = map[string]models.StudentClass{"s1": {ID: "mem1", UserID: "s1", ClassID: "cl1", Role: models.ClassRoleMonitor}}
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	_, err := svc.AssignViceMonitor(context.Background(), "cl1", "s1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
}

func TestClassServiceSuspendRequiresReason(t *testing.T) {
	classes, users := classFixture()
	classes.memberships = map[string]models.StudentClass{"s1": {ID: "mem1", UserID: "s1", ClassID: "cl1", Status: models.MembershipStatusActive}}
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	suspended := models.MembershipStatusSuspended
	_, err := svc.UpdateMembership(context.Background(), "mem1", UpdateMembershipRequest{Status: &suspended})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	reason := "unexcused absence"
	membership, err := svc.UpdateMembership(context.Background(), "mem1", UpdateMembershipRequest{Status: &suspended, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusSuspended, membership.Status)
	assert.Equal(t, reason, membership.Reason)
}

func TestClassServiceDeleteBlockedByMembers(t *testing.T) {
	classes, users := classFixture()
	classes.memberCount = 5
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "cl1")
	require.Error(t, err)
}

func TestClassServiceCreateRejectsBusyManager(t *testing.T) {
	classes, users := classFixture()
	classes.managerTaken = true
	svc := NewClassService(classes, users, validator.New(), zap.NewNop())

	managerID := "m1"
	_, err := svc.Create(context.Background(), CreateClassRequest{Name: "Bravo", ManagerID: &managerID})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
}
