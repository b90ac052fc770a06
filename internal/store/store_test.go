package store

import (
	"fmt"
	"testing"

	"github.com/go-buildgate/buildgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := New("sqlite", dsn)
	require.NoError(t, err)
	return s
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "root@/gate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNew_SeedsRolesAndAdmin(t *testing.T) {
	s := newTestStore(t)

	for _, title := range []string{RoleAdmin, RoleUser} {
		role, err := s.GetRoleByTitle(title)
		require.NoError(t, err)
		assert.Equal(t, title, role.Title)
	}

	admin, err := s.GetUserByLogin("admin")
	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, admin.State)
	assert.True(t, admin.IsAdmin())
}

func TestCreateUser_AndLookup(t *testing.T) {
	s := newTestStore(t)

	user := &models.User{
		Login:        "alice",
		Email:        "alice@example.com",
		PasswordHash: mustHash(t, "secret"),
		State:        models.StateConfirmed,
	}
	require.NoError(t, s.CreateUser(user, RoleUser))
	assert.NotEmpty(t, user.ID, "missing id is generated")

	found, err := s.GetUserByLogin("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", found.Email)
	assert.True(t, found.HasRole(RoleUser))
	assert.False(t, found.IsAdmin())
}

func TestCreateUser_LoginConflict(t *testing.T) {
	s := newTestStore(t)

	first := &models.User{
		Login:        "alice",
		Email:        "alice@example.com",
		PasswordHash: mustHash(t, "secret"),
	}
	require.NoError(t, s.CreateUser(first, RoleUser))

	dup := &models.User{
		ID:           uuid.New().String(),
		Login:        "alice",
		Email:        "other@example.com",
		PasswordHash: mustHash(t, "secret"),
	}
	assert.ErrorIs(t, s.CreateUser(dup, RoleUser), ErrLoginConflict)
}

func TestCreateUser_Validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		user models.User
		want string
	}{
		{"empty login", models.User{Email: "a@example.com", PasswordHash: "x"}, "login"},
		{"empty email", models.User{Login: "a", PasswordHash: "x"}, "email"},
		{"bad email", models.User{Login: "a", Email: "not-an-address", PasswordHash: "x"}, "not a valid address"},
		{"empty password", models.User{Login: "a", Email: "a@example.com"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(&tt.user)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}

func TestGetConfirmedUserByLogin(t *testing.T) {
	s := newTestStore(t)

	unconfirmed := &models.User{
		Login:        "pending",
		Email:        "pending@example.com",
		PasswordHash: mustHash(t, "secret"),
		State:        models.StateUnconfirmed,
	}
	require.NoError(t, s.CreateUser(unconfirmed))

	_, err := s.GetConfirmedUserByLogin("pending")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = s.GetConfirmedUserByLogin("nobody")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestVerifyCredentials(t *testing.T) {
	s := newTestStore(t)

	confirmed := &models.User{
		Login:        "alice",
		Email:        "alice@example.com",
		PasswordHash: mustHash(t, "secret"),
		State:        models.StateConfirmed,
	}
	require.NoError(t, s.CreateUser(confirmed))

	locked := &models.User{
		Login:        "bob",
		Email:        "bob@example.com",
		PasswordHash: mustHash(t, "secret"),
		State:        models.StateLocked,
	}
	require.NoError(t, s.CreateUser(locked))

	user, err := s.VerifyCredentials("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)

	_, err = s.VerifyCredentials("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.VerifyCredentials("nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.VerifyCredentials("bob", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateUserEmail(t *testing.T) {
	s := newTestStore(t)

	user := &models.User{
		Login:        "alice",
		Email:        "old@example.com",
		PasswordHash: mustHash(t, "secret"),
		State:        models.StateConfirmed,
	}
	require.NoError(t, s.CreateUser(user))

	require.NoError(t, s.UpdateUserEmail(user, "new@example.com"))
	assert.Equal(t, "new@example.com", user.Email)

	reloaded, err := s.GetUserByLogin("alice")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", reloaded.Email)
}

func TestHealth(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Health())
}
