package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginCreatesAndReattaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.Login(ctx, LoginInput{Name: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.IsAdmin)

	// Same name, new session: same user record.
	second, err := env.auth.Login(ctx, LoginInput{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	users, err := env.auth.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestLoginTrimsAndRequiresName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Login(ctx, LoginInput{Name: "   "})
	assert.ErrorIs(t, err, ErrNameRequired)

	user, err := env.auth.Login(ctx, LoginInput{Name: "  bob  "})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Name)
}

func TestAdminLoginPassphrase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Login(ctx, LoginInput{Name: "host", Password: "wrong", AdminLogin: true})
	assert.ErrorIs(t, err, ErrInvalidAdminPassphrase)

	admin, err := env.auth.Login(ctx, LoginInput{Name: "host", Password: testAdminPassphrase, AdminLogin: true})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
}

func TestAdminNameRejectsPlainLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.newUser(t, "host", true)

	_, err := env.auth.Login(ctx, LoginInput{Name: "host"})
	assert.ErrorIs(t, err, ErrAdminNameReserved)

	// With the passphrase the admin reattaches normally.
	again, err := env.auth.Login(ctx, LoginInput{Name: "host", Password: testAdminPassphrase, AdminLogin: true})
	require.NoError(t, err)
	assert.True(t, again.IsAdmin)
}

func TestRequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	voter := env.newUser(t, "alice", false)
	admin := env.newUser(t, "host", true)

	assert.ErrorIs(t, env.auth.RequireAdmin(nil), ErrAdminRequired)
	assert.ErrorIs(t, env.auth.RequireAdmin(voter), ErrAdminRequired)
	assert.NoError(t, env.auth.RequireAdmin(admin))
}

func TestLastUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Empty(t, env.auth.LastUsername())

	_, err := env.auth.Login(ctx, LoginInput{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", env.auth.LastUsername())
}
