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

type mockUserRepo struct {
	usersByID  map[int64]*models.User
	nextID     int64
	revoked    []int64
	deleted    []int64
	listResult []models.User
}

func (m *mockUserRepo) byEmail(email string) *models.User {
	for _, u := range m.usersByID {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u := m.byEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.usersByID == nil {
		m.usersByID = make(map[int64]*models.User)
	}
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.usersByID[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.usersByID[user.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *user
	m.usersByID[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	delete(m.usersByID, id)
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.listResult, len(m.listResult), nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

type mockMembershipRepo struct {
	rows []models.GroupMembership
}

func (m *mockMembershipRepo) Memberships(ctx context.Context, userID int64) ([]models.GroupMembership, error) {
	return m.rows, nil
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, &mockMembershipRepo{}, nil, nil)

	user, err := svc.Create(context.Background(), models.CreateUserRequest{
		Name:     "Admin",
		Email:    "admin@example.com",
		Password: "supersecret",
		Role:     "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "supersecret", user.PasswordHash)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{usersByID: map[int64]*models.User{
		1: {ID: 1, Email: "admin@example.com"},
	}}
	svc := NewUserService(repo, &mockMembershipRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Name: "B", Email: "admin@example.com", Password: "supersecret", Role: "teacher",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, &mockMembershipRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Name: "B", Email: "b@example.com", Password: "supersecret", Role: "principal",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivationRevokesSessions(t *testing.T) {
	repo := &mockUserRepo{usersByID: map[int64]*models.User{
		1: {ID: 1, Email: "t@example.com", Role: models.RoleTeacher, Active: true},
	}}
	svc := NewUserService(repo, &mockMembershipRepo{}, nil, nil)

	inactive := false
	user, err := svc.Update(context.Background(), 1, models.UpdateUserRequest{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.Equal(t, []int64{1}, repo.revoked)
}

func TestUserServiceUpdateKeepsSessionsWhenStillActive(t *testing.T) {
	repo := &mockUserRepo{usersByID: map[int64]*models.User{
		1: {ID: 1, Email: "t@example.com", Role: models.RoleTeacher, Active: true},
	}}
	svc := NewUserService(repo, &mockMembershipRepo{}, nil, nil)

	name := "New Name"
	user, err := svc.Update(context.Background(), 1, models.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.Name)
	assert.Empty(t, repo.revoked)
}

func TestUserServiceGetMissing(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, &mockMembershipRepo{}, nil, nil)

	_, err := svc.Get(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceMemberships(t *testing.T) {
	memberships := &mockMembershipRepo{rows: []models.GroupMembership{
		{UserID: 1, GroupID: 9, SourceRole: "teacher"},
		{UserID: 1, GroupID: 12, SourceRole: "parent"},
	}}
	repo := &mockUserRepo{usersByID: map[int64]*models.User{1: {ID: 1}}}
	svc := NewUserService(repo, memberships, nil, nil)

	rows, err := svc.Memberships(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
