package marketplace_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackerStore adapts memUserStore to the identity provider's contract and
// counts the tracking calls.
type trackerStore struct {
	*memUserStore
	attempted  int
	successful int
}

func (s *trackerStore) GetByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == identifier || u.ID.String() == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errRecordMissing
}

func (s *trackerStore) TrackAttemptedLogin(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted++
	stored := s.users[user.ID]
	stored.LoginAttempts++
	now := time.Now()
	stored.LoginAttemptAt = &now
	return nil
}

func (s *trackerStore) TrackSuccessfulLogin(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successful++
	stored := s.users[user.ID]
	stored.LoginAttempts = 0
	stored.LoginAttemptAt = nil
	now := time.Now()
	stored.LoggedInAt = &now
	return nil
}

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash hashes once per run, bcrypt at a real cost is slow.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := auth.HashPassword("secret-pass-123")
		if err != nil {
			t.Fatal(err)
		}
		testHash = h
	})
	return testHash
}

func loginUser(t *testing.T) *auth.User {
	return &auth.User{
		ID:              uuid.New(),
		Name:            "Ama Mensah",
		Email:           "ama@example.com",
		Role:            auth.RoleUser,
		UserType:        auth.TypeClient,
		PasswordHash:    testPasswordHash(t),
		IsEmailVerified: true,
	}
}

func TestVerifyIdentitySuccess(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	identity, err := provider.VerifyIdentity(ctx, "ama@example.com", "secret-pass-123")
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, "ama@example.com", identity.Email())
	assert.Equal(t, string(auth.RoleUser), identity.Role())
	assert.Equal(t, string(auth.TypeClient), identity.UserType())
	assert.Equal(t, 1, store.successful)
	assert.Equal(t, 0, store.attempted)
}

func TestVerifyIdentityWrongPassword(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	_, err := provider.VerifyIdentity(ctx, "ama@example.com", "nope")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	assert.Equal(t, 1, store.attempted)
}

func TestVerifyIdentityUnknownAccountLooksLikeBadPassword(t *testing.T) {
	ctx := context.Background()
	store := &trackerStore{memUserStore: newMemUserStore()}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	_, err := provider.VerifyIdentity(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestVerifyIdentityPasswordCheckedBeforeGates(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	user.IsEmailVerified = false // account not usable
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	// Wrong password on an unverified account reports the password error,
	// so callers cannot use the gate error to probe account state.
	_, err := provider.VerifyIdentity(ctx, "ama@example.com", "nope")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

	// Correct password surfaces the verification gate.
	_, err = provider.VerifyIdentity(ctx, "ama@example.com", "secret-pass-123")
	assert.ErrorIs(t, err, auth.ErrAccountNotVerified)
}

func TestVerifyIdentityBlockedAccount(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	user.IsBlocked = true
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	_, err := provider.VerifyIdentity(ctx, "ama@example.com", "secret-pass-123")
	assert.ErrorIs(t, err, auth.ErrAccountBlocked)
}

func TestVerifyIdentityCooldown(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	now := time.Now()
	user.LoginAttempts = auth.MaxLoginAttempts + 1
	user.LoginAttemptAt = &now
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	// Even the right password is refused while the cooldown runs.
	_, err := provider.VerifyIdentity(ctx, "ama@example.com", "secret-pass-123")
	assert.ErrorIs(t, err, auth.ErrTooManyLoginAttempts)
}

func TestVerifyIdentityCooldownExpires(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	stale := time.Now().Add(-48 * time.Hour) // outside the 24h window
	user.LoginAttempts = auth.MaxLoginAttempts + 1
	user.LoginAttemptAt = &stale
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	_, err := provider.VerifyIdentity(ctx, "ama@example.com", "secret-pass-123")
	assert.NoError(t, err)
}

func TestFindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()
	user := loginUser(t)
	store := &trackerStore{memUserStore: newMemUserStore(user)}
	provider := auth.NewUserProvider(store).WithLogger(discardLogger{})

	identity, err := provider.FindIdentityByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.Email, identity.Email())

	user.IsBlocked = true
	store.users[user.ID] = user
	_, err = provider.FindIdentityByIdentifier(ctx, user.ID.String())
	assert.ErrorIs(t, err, auth.ErrAccountBlocked)
}
