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

type mockStudentRepo struct {
	students  map[int64]*models.Student
	nextID    int64
	guardians []models.GuardianLink
	unlinked  [][2]int64
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[int64]*models.Student)
	}
	m.nextID++
	student.ID = m.nextID
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id int64) error {
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) AddGuardian(ctx context.Context, link models.GuardianLink) error {
	m.guardians = append(m.guardians, link)
	return nil
}

func (m *mockStudentRepo) RemoveGuardian(ctx context.Context, studentID, parentUserID int64) error {
	m.unlinked = append(m.unlinked, [2]int64{studentID, parentUserID})
	return nil
}

func (m *mockStudentRepo) ListGuardians(ctx context.Context, studentID int64) ([]models.GuardianLink, error) {
	return m.guardians, nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo) {
	repo := &mockStudentRepo{students: map[int64]*models.Student{
		20: {ID: 20, FirstName: "Mia", LastName: "Lopez"},
	}, nextID: 20}
	users := &mockUserLookup{users: map[int64]*models.User{
		1: {ID: 1, Role: models.RoleTeacher, Active: true},
		5: {ID: 5, Role: models.RoleParent, Active: true},
	}}
	return NewStudentService(repo, users, nil, nil), repo
}

func TestStudentServiceAddGuardian(t *testing.T) {
	svc, repo := newStudentFixture()

	err := svc.AddGuardian(context.Background(), 20, models.GuardianRequest{
		ParentUserID: 5, Relationship: "mother",
	})
	require.NoError(t, err)
	require.Len(t, repo.guardians, 1)
	assert.Equal(t, models.GuardianLink{StudentID: 20, ParentUserID: 5, Relationship: "mother"}, repo.guardians[0])
}

func TestStudentServiceAddGuardianRejectsTeacher(t *testing.T) {
	svc, repo := newStudentFixture()

	err := svc.AddGuardian(context.Background(), 20, models.GuardianRequest{
		ParentUserID: 1, Relationship: "father",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "parent_user_id")
	assert.Empty(t, repo.guardians)
}

func TestStudentServiceAddGuardianUnknownParent(t *testing.T) {
	svc, _ := newStudentFixture()

	err := svc.AddGuardian(context.Background(), 20, models.GuardianRequest{
		ParentUserID: 404, Relationship: "mother",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceAddGuardianUnknownStudent(t *testing.T) {
	svc, _ := newStudentFixture()

	err := svc.AddGuardian(context.Background(), 404, models.GuardianRequest{
		ParentUserID: 5, Relationship: "mother",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateAndUpdate(t *testing.T) {
	svc, _ := newStudentFixture()

	code := "S-0021"
	student, err := svc.Create(context.Background(), models.CreateStudentRequest{
		FirstName: "Leo", LastName: "Kim", Code: &code,
	})
	require.NoError(t, err)
	assert.NotZero(t, student.ID)

	last := "Kim-Park"
	updated, err := svc.Update(context.Background(), student.ID, models.UpdateStudentRequest{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Kim-Park", updated.LastName)
	require.NotNil(t, updated.Code)
	assert.Equal(t, "S-0021", *updated.Code)
}

func TestStudentServiceRemoveGuardian(t *testing.T) {
	svc, repo := newStudentFixture()

	require.NoError(t, svc.RemoveGuardian(context.Background(), 20, 5))
	assert.Equal(t, [][2]int64{{20, 5}}, repo.unlinked)
}
