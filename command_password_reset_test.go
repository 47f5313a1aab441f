package marketplace_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordResetSendsToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	mailer := &recordingMailer{}
	sink := &recordingSink{}

	handler := auth.NewInitializePasswordResetHandler(repo, mailer, sink, discardLogger{})

	user := &auth.User{ID: uuid.New(), Name: "Ama", Email: "ama@example.com"}
	users.On("GetByIdentifier", mock.Anything, "ama@example.com").
		Return(user, nil).Once()
	users.On("SetResetToken", mock.Anything, user.ID, mock.Anything, mock.Anything).
		Return(nil).Once()

	err := handler.Execute(ctx, auth.InitializePasswordResetMessage{Email: "ama@example.com"})
	require.NoError(t, err)

	require.Len(t, mailer.resets, 1)
	assert.Equal(t, "ama@example.com", mailer.resets[0].To)
	assert.NotEmpty(t, mailer.resets[0].Token)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventPasswordResetIssued, events[0].EventType)

	users.AssertExpectations(t)
}

func TestInitializePasswordResetUnknownEmailStaysSilent(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	mailer := &recordingMailer{}

	handler := auth.NewInitializePasswordResetHandler(repo, mailer, nil, discardLogger{})

	users.On("GetByIdentifier", mock.Anything, "ghost@example.com").
		Return(nil, errRecordMissing).Once()

	// Unknown accounts succeed without sending anything, so the endpoint
	// cannot be used to enumerate emails.
	err := handler.Execute(ctx, auth.InitializePasswordResetMessage{Email: "ghost@example.com"})
	assert.NoError(t, err)
	assert.Empty(t, mailer.resets)
}

func TestFinalizePasswordReset(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	sink := &recordingSink{}

	handler := auth.NewFinalizePasswordResetHandler(repo, sink, discardLogger{})

	expiry := time.Now().Add(5 * time.Minute)
	user := &auth.User{
		ID:               uuid.New(),
		Email:            "ama@example.com",
		ResetToken:       "reset-token-value",
		ResetTokenExpiry: &expiry,
	}

	users.On("GetByResetToken", mock.Anything, "reset-token-value").
		Return(user, nil).Once()
	users.On("ResetPassword", mock.Anything, user.ID, mock.MatchedBy(func(hash string) bool {
		return auth.ComparePasswordAndHash("new-password-99", hash) == nil
	})).Return(nil).Once()

	err := handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    "reset-token-value",
		Password: "new-password-99",
	})
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventPasswordReset, events[0].EventType)
	assert.Equal(t, user.ID.String(), events[0].RecordID)

	users.AssertExpectations(t)
}

func TestFinalizePasswordResetTokenFailures(t *testing.T) {
	ctx := context.Background()

	expired := time.Now().Add(-time.Minute)
	cases := []struct {
		name  string
		token string
		user  *auth.User
	}{
		{"empty token", "", nil},
		{"unknown token", "nope", nil},
		{"expired token", "tok", &auth.User{ID: uuid.New(), ResetToken: "tok", ResetTokenExpiry: &expired}},
		{"no expiry set", "tok", &auth.User{ID: uuid.New(), ResetToken: "tok"}},
		{"stored token differs", "tok", &auth.User{ID: uuid.New(), ResetToken: "other"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := &MockUsers{}
			repo := &MockRepositoryManager{users: users}
			handler := auth.NewFinalizePasswordResetHandler(repo, nil, discardLogger{})

			if tc.token != "" {
				if tc.user != nil {
					users.On("GetByResetToken", mock.Anything, tc.token).Return(tc.user, nil).Once()
				} else {
					users.On("GetByResetToken", mock.Anything, tc.token).Return(nil, errRecordMissing).Once()
				}
			}

			err := handler.Execute(ctx, auth.FinalizePasswordResetMessage{
				Token:    tc.token,
				Password: "new-password-99",
			})
			assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
		})
	}
}
