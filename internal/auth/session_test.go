package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/biblioteca/internal/entities"
)

func TestSession_LoginLogout(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	createUser(t, db, "admin", entities.UserRoleAdmin)

	session := svc.NewSession()
	assert.Nil(t, session.Current())
	assert.False(t, session.HasPermission(PermBooksRead))

	assert.False(t, session.Login(ctx, "admin", "Wrong-password1"))
	assert.False(t, session.Login(ctx, "ghost", testPassword))
	assert.Nil(t, session.Current())

	require.True(t, session.Login(ctx, "admin", testPassword))
	cur := session.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "admin", cur.Username)
	assert.True(t, session.HasPermission(PermLoansDelete))
	assert.False(t, session.HasPermission(PermConfigManage))
	assert.True(t, session.CanCreate(entities.UserRoleLibrarian))
	assert.False(t, session.CanCreate(entities.UserRoleAdmin))

	session.Logout()
	assert.Nil(t, session.Current())
	assert.False(t, session.CanCreate(entities.UserRoleLibrarian))
}

func TestSession_Independent(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	createUser(t, db, "one", entities.UserRoleLibrarian)
	createUser(t, db, "two", entities.UserRoleAdmin)

	a, b := svc.NewSession(), svc.NewSession()
	require.True(t, a.Login(ctx, "one", testPassword))
	require.True(t, b.Login(ctx, "two", testPassword))

	assert.Equal(t, "one", a.Current().Username)
	assert.Equal(t, "two", b.Current().Username)

	a.Logout()
	assert.Nil(t, a.Current())
	assert.NotNil(t, b.Current())
}

func TestSession_CurrentIsCopy(t *testing.T) {
	svc, db := setupTestService(t)
	createUser(t, db, "lib", entities.UserRoleLibrarian)

	session := svc.NewSession()
	require.True(t, session.Login(context.Background(), "lib", testPassword))

	cur := session.Current()
	cur.Role = entities.UserRoleSuperAdmin
	assert.False(t, session.HasPermission(PermConfigManage))
}
