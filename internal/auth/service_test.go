package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/auth"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/internal/shared"
)

type failingRepo struct{ stubRepo }

func (failingRepo) FindByEmail(context.Context, string) (*auth.User, error) {
	return nil, errors.New("connection refused")
}

func TestAuthenticate(t *testing.T) {
	active := &auth.User{ID: 4, Email: "spv@test.local", Role: rbac.RoleSupervisor, PasswordHash: hashed(t, "correctpass"), IsActive: true}
	svc := auth.NewService(&stubRepo{user: active})

	user, err := svc.Authenticate(context.Background(), "  SPV@test.local ", "correctpass")
	require.NoError(t, err)
	assert.Equal(t, int64(4), user.ID)

	_, err = svc.Authenticate(context.Background(), "spv@test.local", "wrongpass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@test.local", "correctpass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAfterPasswordCheck(t *testing.T) {
	inactive := &auth.User{ID: 5, Email: "old@test.local", Role: rbac.RoleFieldSalesOfficer, PasswordHash: hashed(t, "correctpass")}
	svc := auth.NewService(&stubRepo{user: inactive})

	_, err := svc.Authenticate(context.Background(), "old@test.local", "correctpass")
	assert.ErrorIs(t, err, shared.ErrInactiveUser)

	_, err = svc.Authenticate(context.Background(), "old@test.local", "wrongpass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateSurfacesStoreFailure(t *testing.T) {
	svc := auth.NewService(&failingRepo{})

	_, err := svc.Authenticate(context.Background(), "a@test.local", "whatever1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestHashPassword(t *testing.T) {
	_, err := auth.HashPassword("short")
	assert.Error(t, err)

	hash, err := auth.HashPassword("longenough")
	require.NoError(t, err)
	svc := auth.NewService(&stubRepo{user: &auth.User{ID: 1, Email: "a@test.local", PasswordHash: hash, IsActive: true}})
	_, err = svc.Authenticate(context.Background(), "a@test.local", "longenough")
	assert.NoError(t, err)
}

func TestSessionRecords(t *testing.T) {
	repo := &stubRepo{}
	svc := auth.NewService(repo)

	require.NoError(t, svc.RegisterSession(context.Background(), "sid", 9, time.Now().Add(time.Hour), "127.0.0.1", "test"))
	assert.Equal(t, int64(9), repo.sessions["sid"])
	require.NoError(t, svc.RemoveSession(context.Background(), "sid"))
	assert.Empty(t, repo.sessions)
}
