package marketplace_test

import (
	"testing"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	id       string
	name     string
	email    string
	role     string
	userType string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.name }
func (t testIdentity) Email() string    { return t.email }
func (t testIdentity) Role() string     { return t.role }
func (t testIdentity) UserType() string { return t.userType }

func newTestTokenService() auth.TokenService {
	return auth.NewTokenService(
		[]byte("test-signing-key"),
		168, // regular sessions, hours
		24,  // admin sessions
		"workisready-test",
		jwt.ClaimStrings{"test:audience"},
		discardLogger{},
	)
}

func TestTokenServiceRoundTrip(t *testing.T) {
	ts := newTestTokenService()
	id := uuid.NewString()

	token, err := ts.Generate(testIdentity{
		id:       id,
		email:    "ama@example.com",
		role:     string(auth.RoleUser),
		userType: string(auth.TypeClient),
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, id, claims.UserID())
	assert.Equal(t, id, claims.Subject())
	assert.Equal(t, "ama@example.com", claims.Email())
	assert.Equal(t, string(auth.RoleUser), claims.Role())
	assert.Equal(t, string(auth.TypeClient), claims.UserType())
}

func TestTokenServiceAdminExpiration(t *testing.T) {
	ts := newTestTokenService()

	userToken, err := ts.Generate(testIdentity{id: uuid.NewString(), role: string(auth.RoleUser)})
	require.NoError(t, err)
	adminToken, err := ts.Generate(testIdentity{id: uuid.NewString(), role: string(auth.RoleAdmin)})
	require.NoError(t, err)

	userClaims, err := ts.Validate(userToken)
	require.NoError(t, err)
	adminClaims, err := ts.Validate(adminToken)
	require.NoError(t, err)

	// Admin tokens run on the shorter clock.
	assert.True(t, adminClaims.Expires().Before(userClaims.Expires()))

	wiggle := time.Minute
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), adminClaims.Expires(), wiggle)
	assert.WithinDuration(t, time.Now().Add(168*time.Hour), userClaims.Expires(), wiggle)
}

func TestTokenServiceAdminByUserType(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Generate(testIdentity{
		id:       uuid.NewString(),
		role:     string(auth.RoleUser),
		userType: string(auth.TypeAdmin),
	})
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.Expires(), time.Minute)
}

func TestTokenServiceRejectsTamperedToken(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Generate(testIdentity{id: uuid.NewString()})
	require.NoError(t, err)

	_, err = ts.Validate(token + "x")
	assert.Error(t, err)

	_, err = ts.Validate("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenServiceRejectsForeignKey(t *testing.T) {
	ts := newTestTokenService()
	other := auth.NewTokenService([]byte("different-key"), 168, 24, "workisready-test", jwt.ClaimStrings{"test:audience"}, discardLogger{})

	token, err := other.Generate(testIdentity{id: uuid.NewString()})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	ts := newTestTokenService()

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "workisready-test",
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{"test:audience"},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}

	token, err := ts.SignClaims(claims)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenServiceIssuerMismatch(t *testing.T) {
	ts := newTestTokenService()
	other := auth.NewTokenService([]byte("test-signing-key"), 168, 24, "someone-else", jwt.ClaimStrings{"test:audience"}, discardLogger{})

	token, err := other.Generate(testIdentity{id: uuid.NewString()})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}
