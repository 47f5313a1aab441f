package marketplace_test

import (
	"testing"

	auth "github.com/workisready/marketplace"

	"github.com/stretchr/testify/assert"
)

func TestUserRoleIsValid(t *testing.T) {
	assert.True(t, auth.RoleUser.IsValid())
	assert.True(t, auth.RoleAdmin.IsValid())
	assert.True(t, auth.RoleSuperadmin.IsValid())
	assert.False(t, auth.UserRole("owner").IsValid())
	assert.False(t, auth.UserRole("").IsValid())
}

func TestUserRoleIsAtLeast(t *testing.T) {
	assert.True(t, auth.RoleSuperadmin.IsAtLeast(auth.RoleAdmin))
	assert.True(t, auth.RoleAdmin.IsAtLeast(auth.RoleAdmin))
	assert.True(t, auth.RoleAdmin.IsAtLeast(auth.RoleUser))
	assert.False(t, auth.RoleUser.IsAtLeast(auth.RoleAdmin))
	assert.False(t, auth.UserRole("ghost").IsAtLeast(auth.RoleUser))
	assert.False(t, auth.RoleUser.IsAtLeast(auth.UserRole("ghost")))
}

func TestParseRole(t *testing.T) {
	role, ok := auth.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)

	_, ok = auth.ParseRole("root")
	assert.False(t, ok)
}

func TestUserTypeIsValid(t *testing.T) {
	assert.True(t, auth.TypeClient.IsValid())
	assert.True(t, auth.TypeWorker.IsValid())
	assert.True(t, auth.TypeAdmin.IsValid())
	assert.False(t, auth.UserType("bot").IsValid())
}
