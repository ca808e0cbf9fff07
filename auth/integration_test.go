package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmapi/auth"
	"crmapi/store"
	"crmapi/test/infra"
)

func TestAuthStore_RegisterLoginAndList(t *testing.T) {
	pool := infra.OpenTestPool(t)
	ctx := context.Background()
	svc := auth.NewService(auth.NewRepository(pool), "integration-secret", time.Hour)

	admin, err := svc.Register(ctx, auth.RegisterRequest{Name: "Root", Email: "Root@Example.com", Password: "correct-horse", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", admin.Email)
	assert.Nil(t, admin.LastLogin)
	assert.NotEqual(t, "correct-horse", admin.HashedPassword)

	_, err = svc.Register(ctx, auth.RegisterRequest{Name: "Dup", Email: "root@example.com", Password: "another-pass"})
	require.ErrorIs(t, err, auth.ErrDuplicateEmail)
	require.ErrorIs(t, err, store.ErrConflict)

	seller, err := svc.Register(ctx, auth.RegisterRequest{Name: "Sam Seller", Email: "sam@example.com", Password: "sell-sell-sell"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSeller, seller.Role)

	res, err := svc.Login(ctx, auth.LoginRequest{Email: "ROOT@example.com", Password: "correct-horse"})
	require.NoError(t, err, "email lookup ignores case")
	require.NotNil(t, res.User.LastLogin)

	id, role, err := svc.VerifyToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, id)
	assert.Equal(t, auth.RoleAdmin, role)

	stored, err := svc.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin, "login stamps last_login")

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "sam@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	sellers := auth.RoleSeller
	users, total, err := svc.ListUsers(ctx, auth.ListFilter{Role: &sellers})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, seller.ID, users[0].ID)

	users, total, err = svc.ListUsers(ctx, auth.ListFilter{Search: "root"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, admin.ID, users[0].ID)

	_, err = svc.GetUserByID(ctx, 999999)
	require.ErrorIs(t, err, auth.ErrUserNotFound)
}
