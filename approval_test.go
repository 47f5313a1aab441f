package marketplace_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedUser() *auth.User {
	return &auth.User{
		ID:         uuid.New(),
		Name:       "Ama Mensah",
		Email:      "ama@example.com",
		Location:   "Accra",
		IsApproved: true,
	}
}

func newUserEngine(store *memUserStore, clock *fixedClock, opts ...auth.EngineOption) *auth.VerifyEngine[auth.ProfileData, *auth.User] {
	base := []auth.EngineOption{
		auth.WithEngineClock(clock.Now),
		auth.WithEngineLogger(discardLogger{}),
	}
	return auth.NewVerifyEngine[auth.ProfileData, *auth.User](store, append(base, opts...)...)
}

func TestStageEditKeepsPublishedValues(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	sink := &recordingSink{}
	engine := newUserEngine(store, clock, auth.WithEngineActivitySink(sink))

	patch := auth.ProfilePatch{Location: strPtr("Kumasi"), Phone: strPtr("+233201234567")}

	saved, err := engine.StageEdit(ctx, auth.ActorRef{ID: user.ID.String(), Type: "user"}, user.ID, patch)
	require.NoError(t, err)

	// Published values stay as they were until a decision lands.
	assert.Equal(t, "Accra", saved.Location)
	assert.True(t, saved.HasPendingChanges)
	require.NotNil(t, saved.PendingProfile)
	assert.Equal(t, "Kumasi", saved.PendingProfile.Location)
	assert.Equal(t, "+233201234567", saved.PendingProfile.Phone)

	// Untouched patch fields carry the published value into the proposal.
	assert.Equal(t, "Ama Mensah", saved.PendingProfile.Name)

	require.NotNil(t, saved.OriginalProfile)
	assert.Equal(t, "Accra", saved.OriginalProfile.Location)

	require.NotNil(t, saved.PendingSubmittedAt)
	assert.Equal(t, clock.Now(), *saved.PendingSubmittedAt)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventEditStaged, events[0].EventType)
}

func TestStageEditRejectsSecondProposal(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Now())
	engine := newUserEngine(store, clock)

	_, err := engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Tema")})
	require.NoError(t, err)

	_, err = engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Tamale")})
	assert.ErrorIs(t, err, auth.ErrChangesAlreadyPending)
}

func TestStageEditRequiresApproval(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	user.IsApproved = false
	store := newMemUserStore(user)
	engine := newUserEngine(store, newFixedClock(time.Now()))

	_, err := engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Tema")})
	assert.ErrorIs(t, err, auth.ErrNotApproved)
}

func TestStageEditRejectsBlockedRecord(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	user.IsBlocked = true
	store := newMemUserStore(user)
	engine := newUserEngine(store, newFixedClock(time.Now()))

	_, err := engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Tema")})
	assert.ErrorIs(t, err, auth.ErrAccountBlocked)
}

func TestDecidePendingChangeAccept(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	sink := &recordingSink{}
	engine := newUserEngine(store, clock, auth.WithEngineActivitySink(sink))

	_, err := engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Kumasi")})
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	saved, err := engine.DecidePendingChange(ctx, auth.ActorRef{ID: "admin-1", Type: "admin"}, user.ID, true)
	require.NoError(t, err)

	assert.Equal(t, "Kumasi", saved.Location)
	assert.False(t, saved.HasPendingChanges)
	assert.Nil(t, saved.PendingProfile)
	assert.Nil(t, saved.OriginalProfile)
	assert.Nil(t, saved.PendingSubmittedAt)
	require.NotNil(t, saved.LastApprovedAt)
	assert.Equal(t, clock.Now(), *saved.LastApprovedAt)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, auth.ActivityEventEditAccepted, events[1].EventType)
}

func TestDecidePendingChangeReject(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Now())
	engine := newUserEngine(store, clock)

	_, err := engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Kumasi")})
	require.NoError(t, err)

	saved, err := engine.DecidePendingChange(ctx, auth.ActorRef{}, user.ID, false)
	require.NoError(t, err)

	// The proposal is discarded and the published values survive.
	assert.Equal(t, "Accra", saved.Location)
	assert.False(t, saved.HasPendingChanges)
	assert.Nil(t, saved.PendingProfile)
	assert.Nil(t, saved.LastApprovedAt)
}

func TestDecidePendingChangeRequiresProposal(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	engine := newUserEngine(store, newFixedClock(time.Now()))

	_, err := engine.DecidePendingChange(ctx, auth.ActorRef{}, user.ID, true)
	assert.ErrorIs(t, err, auth.ErrNoPendingChange)
}

func TestAdminSetApprovalTimestampOnlyMovesOnGrant(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	user.IsApproved = false
	store := newMemUserStore(user)
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	engine := newUserEngine(store, clock)

	saved, err := engine.AdminSetApproval(ctx, auth.ActorRef{Type: "admin"}, user.ID, true)
	require.NoError(t, err)
	require.NotNil(t, saved.LastApprovedAt)
	granted := *saved.LastApprovedAt

	// Granting again while already approved does not refresh the stamp.
	clock.Advance(time.Hour)
	saved, err = engine.AdminSetApproval(ctx, auth.ActorRef{Type: "admin"}, user.ID, true)
	require.NoError(t, err)
	require.NotNil(t, saved.LastApprovedAt)
	assert.Equal(t, granted, *saved.LastApprovedAt)

	// Revoking keeps any other state intact.
	saved, err = engine.AdminSetApproval(ctx, auth.ActorRef{Type: "admin"}, user.ID, false)
	require.NoError(t, err)
	assert.False(t, saved.IsApproved)
}

func TestAdminSetApprovalKeepsStagedProposal(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Now())
	engine := newUserEngine(store, clock)

	_, err := engine.StageEdit(ctx, auth.ActorRef{}, user.ID, auth.ProfilePatch{Location: strPtr("Kumasi")})
	require.NoError(t, err)

	saved, err := engine.AdminSetApproval(ctx, auth.ActorRef{Type: "admin"}, user.ID, false)
	require.NoError(t, err)

	assert.True(t, saved.HasPendingChanges)
	require.NotNil(t, saved.PendingProfile)
	assert.Equal(t, "Kumasi", saved.PendingProfile.Location)
}

func TestIssueAndRedeemVerificationToken(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	user.IsApproved = false
	store := newMemUserStore(user)
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	engine := newUserEngine(store, clock)

	token, err := engine.IssueVerificationToken(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	saved, err := engine.RedeemVerificationToken(ctx, token)
	require.NoError(t, err)

	assert.True(t, saved.IsEmailVerified)
	assert.Empty(t, saved.VerificationToken)
	assert.Nil(t, saved.VerificationExpiry)
}

func TestRedeemVerificationTokenExpired(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Now())
	engine := newUserEngine(store, clock)

	token, err := engine.IssueVerificationToken(ctx, user.ID)
	require.NoError(t, err)

	clock.Advance(auth.DefaultVerificationTokenTTL + time.Minute)

	_, err = engine.RedeemVerificationToken(ctx, token)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestRedeemVerificationTokenFailureShape(t *testing.T) {
	ctx := context.Background()
	store := newMemUserStore()
	engine := newUserEngine(store, newFixedClock(time.Now()))

	// Missing and unknown tokens fail with the exact same error so callers
	// cannot probe which tokens exist.
	_, missingErr := engine.RedeemVerificationToken(ctx, "")
	_, unknownErr := engine.RedeemVerificationToken(ctx, "deadbeef")

	assert.ErrorIs(t, missingErr, auth.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, unknownErr, auth.ErrInvalidOrExpiredToken)
	assert.Equal(t, missingErr.Error(), unknownErr.Error())
}

func TestIssueVerificationTokenOverwritesOutstanding(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	store := newMemUserStore(user)
	clock := newFixedClock(time.Now())
	engine := newUserEngine(store, clock)

	first, err := engine.IssueVerificationToken(ctx, user.ID)
	require.NoError(t, err)

	second, err := engine.IssueVerificationToken(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = engine.RedeemVerificationToken(ctx, first)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	_, err = engine.RedeemVerificationToken(ctx, second)
	assert.NoError(t, err)
}

func TestRedeemWithAutoApproveRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	user := approvedUser()
	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	user.LastApprovedAt = &earlier
	store := newMemUserStore(user)
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	engine := newUserEngine(store, clock, auth.WithAutoApproveOnVerify(true))

	token, err := engine.IssueVerificationToken(ctx, user.ID)
	require.NoError(t, err)

	saved, err := engine.RedeemVerificationToken(ctx, token)
	require.NoError(t, err)

	assert.True(t, saved.IsApproved)
	require.NotNil(t, saved.LastApprovedAt)
	// Already approved, yet the stamp still moves to redemption time.
	assert.Equal(t, clock.Now(), *saved.LastApprovedAt)
}

func TestIsUsable(t *testing.T) {
	engine := newUserEngine(newMemUserStore(), newFixedClock(time.Now()))

	cases := []struct {
		name     string
		user     *auth.User
		expected bool
	}{
		{"verified only", &auth.User{IsEmailVerified: true}, true},
		{"approved only", &auth.User{IsApproved: true}, true},
		{"neither gate open", &auth.User{}, false},
		{"blocked trumps both", &auth.User{IsEmailVerified: true, IsApproved: true, IsBlocked: true}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, engine.IsUsable(tc.user))
		})
	}
}

func TestProviderEngineUsesApprovalOnlyGate(t *testing.T) {
	ctx := context.Background()
	provider := &auth.Provider{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		FirstName:  "Kofi",
		Surname:    "Asante",
		City:       "Accra",
		IsApproved: true,
	}
	store := newMemProviderStore(provider)
	clock := newFixedClock(time.Now())
	engine := auth.NewEngine[auth.ProviderProfile, *auth.Provider](store,
		auth.WithEngineClock(clock.Now),
		auth.WithEngineLogger(discardLogger{}),
	)

	assert.True(t, engine.IsUsable(provider))

	saved, err := engine.StageEdit(ctx, auth.ActorRef{}, provider.ID, auth.ProviderPatch{City: strPtr("Takoradi")})
	require.NoError(t, err)
	assert.Equal(t, "Accra", saved.City)
	require.NotNil(t, saved.PendingProfile)
	assert.Equal(t, "Takoradi", saved.PendingProfile.City)

	accepted, err := engine.DecidePendingChange(ctx, auth.ActorRef{Type: "admin"}, provider.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Takoradi", accepted.City)
	assert.False(t, accepted.HasPendingChanges)
}
