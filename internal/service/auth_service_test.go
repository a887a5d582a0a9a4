package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/classdesk/classdesk-api/internal/models"
)

type mockAuthUserRepo struct {
	users   map[string]models.User
	created *models.User
}

func (m *mockAuthUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.users[user.ID] = *user
	m.created = user
	return nil
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUserRepo) {
	t.Helper()
	repo := &mockAuthUserRepo{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "classdesk-test",
	})
	return svc, repo
}

func TestAuthRegister(t *testing.T) {
	svc, repo := newAuthFixture(t)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "teacher@classdesk.io",
		Password:  "super-secret",
		FirstName: "Tess",
		LastName:  "Ngo",
		Role:      string(models.RoleTeacher),
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleTeacher, info.Role)
	require.NotNil(t, repo.created)
	assert.NotEqual(t, "super-secret", repo.created.PasswordHash)
}

func TestAuthRegisterDuplicateEmail(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users = map[string]models.User{
		"u1": {ID: "u1", Email: "teacher@classdesk.io", Role: models.RoleTeacher},
	}

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "teacher@classdesk.io",
		Password:  "super-secret",
		FirstName: "Tess",
		LastName:  "Ngo",
		Role:      string(models.RoleTeacher),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestAuthRegisterInvalidRole(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "admin@classdesk.io",
		Password:  "super-secret",
		FirstName: "Sam",
		LastName:  "Hart",
		Role:      "ADMIN",
	})
	require.Error(t, err)
}

func TestAuthLoginAndValidateToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users = map[string]models.User{
		"u1": {ID: "u1", Email: "student@classdesk.io", PasswordHash: string(hash), Role: models.RoleStudent},
	}

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@classdesk.io",
		Password: "super-secret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	assert.Equal(t, int64(3600), result.ExpiresIn)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "classdesk-test", claims.Issuer)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, repo := newAuthFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("super-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users = map[string]models.User{
		"u1": {ID: "u1", Email: "student@classdesk.io", PasswordHash: string(hash), Role: models.RoleStudent},
	}

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@classdesk.io",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@classdesk.io",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestAuthValidateTokenGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
