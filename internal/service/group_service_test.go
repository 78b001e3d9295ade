package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type mockGroupRepo struct {
	groups    map[int64]*models.Group
	nextID    int64
	enrolled  [][2]int64
	assigned  [][2]int64
	roster    []models.Student
	teachers  []models.UserRef
	removed   [][2]int64
	unassigns [][2]int64
}

func (m *mockGroupRepo) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	var out []models.Group
	for _, g := range m.groups {
		out = append(out, *g)
	}
	return out, len(out), nil
}

func (m *mockGroupRepo) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	if g, ok := m.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGroupRepo) Create(ctx context.Context, group *models.Group) error {
	if m.groups == nil {
		m.groups = make(map[int64]*models.Group)
	}
	m.nextID++
	group.ID = m.nextID
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *mockGroupRepo) Update(ctx context.Context, group *models.Group) error {
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, id int64) error {
	delete(m.groups, id)
	return nil
}

func (m *mockGroupRepo) AddStudent(ctx context.Context, groupID, studentID int64) error {
	m.enrolled = append(m.enrolled, [2]int64{groupID, studentID})
	return nil
}

func (m *mockGroupRepo) RemoveStudent(ctx context.Context, groupID, studentID int64) error {
	m.removed = append(m.removed, [2]int64{groupID, studentID})
	return nil
}

func (m *mockGroupRepo) ListStudents(ctx context.Context, groupID int64) ([]models.Student, error) {
	return m.roster, nil
}

func (m *mockGroupRepo) AssignTeacher(ctx context.Context, groupID, teacherUserID int64) error {
	m.assigned = append(m.assigned, [2]int64{groupID, teacherUserID})
	return nil
}

func (m *mockGroupRepo) UnassignTeacher(ctx context.Context, groupID, teacherUserID int64) error {
	m.unassigns = append(m.unassigns, [2]int64{groupID, teacherUserID})
	return nil
}

func (m *mockGroupRepo) ListTeachers(ctx context.Context, groupID int64) ([]models.UserRef, error) {
	return m.teachers, nil
}

type mockStudentLookup struct {
	students map[int64]*models.Student
}

func (m *mockStudentLookup) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func newGroupFixture() (*GroupService, *mockGroupRepo) {
	repo := &mockGroupRepo{groups: map[int64]*models.Group{
		9: {ID: 9, Name: "5B", Grade: "5", Section: "B", Code: "5B-2026"},
	}}
	students := &mockStudentLookup{students: map[int64]*models.Student{
		20: {ID: 20, FirstName: "Mia", LastName: "Lopez"},
	}}
	users := &mockUserLookup{users: map[int64]*models.User{
		1: {ID: 1, Role: models.RoleTeacher, Active: true},
		5: {ID: 5, Role: models.RoleParent, Active: true},
	}}
	return NewGroupService(repo, students, users, nil, nil), repo
}

func TestGroupServiceAddStudent(t *testing.T) {
	svc, repo := newGroupFixture()

	require.NoError(t, svc.AddStudent(context.Background(), 9, 20))
	assert.Equal(t, [][2]int64{{9, 20}}, repo.enrolled)
}

func TestGroupServiceAddStudentUnknownStudent(t *testing.T) {
	svc, repo := newGroupFixture()

	err := svc.AddStudent(context.Background(), 9, 404)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrolled)
}

func TestGroupServiceAddStudentUnknownGroup(t *testing.T) {
	svc, _ := newGroupFixture()

	err := svc.AddStudent(context.Background(), 404, 20)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGroupServiceAssignTeacher(t *testing.T) {
	svc, repo := newGroupFixture()

	require.NoError(t, svc.AssignTeacher(context.Background(), 9, 1))
	assert.Equal(t, [][2]int64{{9, 1}}, repo.assigned)
}

func TestGroupServiceAssignTeacherRejectsParent(t *testing.T) {
	svc, repo := newGroupFixture()

	err := svc.AssignTeacher(context.Background(), 9, 5)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "teacher_user_id")
	assert.Empty(t, repo.assigned)
}

func TestGroupServiceAssignTeacherUnknownUser(t *testing.T) {
	svc, _ := newGroupFixture()

	err := svc.AssignTeacher(context.Background(), 9, 404)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGroupServiceCreate(t *testing.T) {
	svc, _ := newGroupFixture()

	group, err := svc.Create(context.Background(), models.CreateGroupRequest{
		Name: "6A", Grade: "6", Section: "A", Code: "6A-2026",
	})
	require.NoError(t, err)
	assert.NotZero(t, group.ID)
	assert.Equal(t, "6A", group.Name)
}

func TestGroupServiceCreateMissingCode(t *testing.T) {
	svc, _ := newGroupFixture()

	_, err := svc.Create(context.Background(), models.CreateGroupRequest{
		Name: "6A", Grade: "6", Section: "A",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
