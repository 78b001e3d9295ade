package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	usersByID     map[int64]*models.User
	nextID        int64
	refreshTokens map[string]*models.RefreshToken
	revokedAll    []int64
	auditLogs     []models.AuditLog
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]*models.User),
		usersByID:     make(map[int64]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	cp := *user
	m.users[user.Email] = &cp
	m.usersByID[user.ID] = &cp
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	if u, ok := m.usersByID[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	m.refreshTokens[token.Token] = &cp
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func newAuthFixture(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "aulalink-test",
	})
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthFixture(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Teacher One",
		Email:    "teacher@example.com",
		Password: "supersecret",
		Role:     "teacher",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "teacher@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthFixture(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "A", Email: "dup@example.com", Password: "supersecret", Role: "parent",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Name: "B", Email: "dup@example.com", Password: "supersecret", Role: "parent",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthFixture(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "A", Email: "a@example.com", Password: "supersecret", Role: "parent",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email: "a@example.com", Password: "wrong-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthFixture(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "A", Email: "a@example.com", Password: "supersecret", Role: "parent",
	})
	require.NoError(t, err)
	repo.users["a@example.com"].Active = false

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email: "a@example.com", Password: "supersecret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthFixture(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "A", Email: "a@example.com", Password: "supersecret", Role: "admin",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.ValidateToken("not.a.token")
	require.Error(t, err)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthFixture(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "A", Email: "a@example.com", Password: "supersecret", Role: "teacher",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked, so replaying it must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	})
	require.Error(t, err)
}
