package marketplace_test

import (
	"context"
	"testing"

	auth "github.com/workisready/marketplace"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsFor(user *auth.User) auth.AuthClaims {
	return &auth.JWTClaims{
		UID:       user.ID.String(),
		UserRole:  string(user.Role),
		UserKind:  string(user.UserType),
		UserEmail: user.Email,
	}
}

func staticValidator(claims auth.AuthClaims, err error) auth.TokenValidator {
	return auth.TokenValidatorFunc(func(string) (auth.AuthClaims, error) {
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

func TestGateAuthenticate(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{
		ID:              uuid.New(),
		Email:           "ama@example.com",
		Role:            auth.RoleUser,
		UserType:        auth.TypeClient,
		IsEmailVerified: true,
	}
	store := newMemUserStore(user)

	gate := auth.NewGate(staticValidator(claimsFor(user), nil), store,
		auth.WithGateLogger(discardLogger{}))

	principal, err := gate.Authenticate(ctx, "Bearer some-token")
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, user.ID, principal.ID())
	assert.False(t, principal.IsAdmin())
}

func TestGateAuthenticateHeaderShapes(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{ID: uuid.New(), IsEmailVerified: true}
	store := newMemUserStore(user)
	gate := auth.NewGate(staticValidator(claimsFor(user), nil), store,
		auth.WithGateLogger(discardLogger{}))

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc"} {
		_, err := gate.Authenticate(ctx, header)
		assert.ErrorIs(t, err, auth.ErrNoToken, "header %q", header)
	}

	// Scheme comparison is case-insensitive.
	_, err := gate.Authenticate(ctx, "bearer some-token")
	assert.NoError(t, err)
}

func TestGateAuthenticateTokenErrors(t *testing.T) {
	ctx := context.Background()
	store := newMemUserStore()

	expired := auth.NewGate(staticValidator(nil, auth.ErrTokenExpired), store,
		auth.WithGateLogger(discardLogger{}))
	_, err := expired.Authenticate(ctx, "Bearer stale")
	assert.ErrorIs(t, err, auth.ErrTokenExpired)

	malformed := auth.NewGate(staticValidator(nil, auth.ErrTokenMalformed), store,
		auth.WithGateLogger(discardLogger{}))
	_, err = malformed.Authenticate(ctx, "Bearer garbage")
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestGateAuthenticateUnknownPrincipal(t *testing.T) {
	ctx := context.Background()
	ghost := &auth.User{ID: uuid.New()}
	store := newMemUserStore() // empty, the claims point nowhere

	gate := auth.NewGate(staticValidator(claimsFor(ghost), nil), store,
		auth.WithGateLogger(discardLogger{}))

	_, err := gate.Authenticate(ctx, "Bearer some-token")
	assert.ErrorIs(t, err, auth.ErrPrincipalNotFound)
}

func TestGateAuthenticateBlockedAccount(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{ID: uuid.New(), IsEmailVerified: true, IsBlocked: true}
	store := newMemUserStore(user)

	gate := auth.NewGate(staticValidator(claimsFor(user), nil), store,
		auth.WithGateLogger(discardLogger{}))

	_, err := gate.Authenticate(ctx, "Bearer some-token")
	assert.ErrorIs(t, err, auth.ErrAccountBlocked)
}

func TestGateRequireRoleAdminDualCheck(t *testing.T) {
	gate := auth.NewGate(staticValidator(nil, nil), newMemUserStore(),
		auth.WithGateLogger(discardLogger{}))

	cases := []struct {
		name string
		user *auth.User
		ok   bool
	}{
		{"role admin", &auth.User{Role: auth.RoleAdmin, UserType: auth.TypeClient}, true},
		{"role superadmin", &auth.User{Role: auth.RoleSuperadmin, UserType: auth.TypeClient}, true},
		{"type admin only", &auth.User{Role: auth.RoleUser, UserType: auth.TypeAdmin}, true},
		{"plain user", &auth.User{Role: auth.RoleUser, UserType: auth.TypeClient}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.RequireRole(&auth.Principal{User: tc.user}, auth.RoleAdmin)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, auth.ErrForbidden)
			}
		})
	}
}

func TestGateRequireRoleUsesLiveRecord(t *testing.T) {
	ctx := context.Background()

	// Claims still carry the admin role, but the stored record was demoted.
	user := &auth.User{ID: uuid.New(), Role: auth.RoleUser, UserType: auth.TypeClient, IsEmailVerified: true}
	adminClaims := &auth.JWTClaims{
		UID:      user.ID.String(),
		UserRole: string(auth.RoleAdmin),
		UserKind: string(auth.TypeAdmin),
	}
	store := newMemUserStore(user)

	gate := auth.NewGate(staticValidator(adminClaims, nil), store,
		auth.WithGateLogger(discardLogger{}))

	principal, err := gate.Authenticate(ctx, "Bearer some-token")
	require.NoError(t, err)

	assert.ErrorIs(t, gate.RequireRole(principal, auth.RoleAdmin), auth.ErrForbidden)
}

func TestGateRequireRoleHierarchy(t *testing.T) {
	gate := auth.NewGate(staticValidator(nil, nil), newMemUserStore(),
		auth.WithGateLogger(discardLogger{}))

	superadmin := &auth.Principal{User: &auth.User{Role: auth.RoleSuperadmin}}
	assert.NoError(t, gate.RequireRole(superadmin, auth.RoleUser))

	plain := &auth.Principal{User: &auth.User{Role: auth.RoleUser}}
	assert.NoError(t, gate.RequireRole(plain, auth.RoleUser))

	assert.ErrorIs(t, gate.RequireRole(nil, auth.RoleUser), auth.ErrPrincipalNotFound)
}
