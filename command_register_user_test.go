package marketplace_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// MockUsers stubs just the repository methods the handlers touch; the
// embedded interface panics on anything unexpected.
type MockUsers struct {
	mock.Mock
	auth.Users
}

func (m *MockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	user, _ := args.Get(0).(*auth.User)
	if user == nil && args.Error(1) == nil {
		user = record
	}
	return user, args.Error(1)
}

func (m *MockUsers) GetByResetToken(ctx context.Context, token string) (*auth.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiry *time.Time) error {
	args := m.Called(ctx, id, token, expiry)
	return args.Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// MockRepositoryManager hands out the users mock and runs transactions inline.
type MockRepositoryManager struct {
	mock.Mock
	auth.RepositoryManager
	users *MockUsers
}

func (m *MockRepositoryManager) Users() auth.Users {
	return m.users
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(context.Context, bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

func TestRegisterUserCreatesUnverifiedAccount(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	mailer := &recordingMailer{}

	// The engine's store is where the created account ends up, the
	// verification token is issued against it.
	store := newMemUserStore()
	engine := auth.NewVerifyEngine[auth.ProfileData, *auth.User](store,
		auth.WithEngineLogger(discardLogger{}))

	handler := auth.NewRegisterUserHandler(repo, engine, mailer, discardLogger{})

	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, "ama@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Run(func(args mock.Arguments) {
		user := args.Get(2).(*auth.User)
		user.ID = uuid.New()
		store.put(user)
	}).Once()

	var created *auth.User
	err := handler.Execute(ctx, auth.RegisterUserMessage{
		FirstName: "Ama",
		Surname:   "Mensah",
		Email:     "  AMA@Example.com ",
		Password:  "secret-pass-123",
		UserType:  string(auth.TypeClient),
		OnResponse: func(u *auth.User) {
			created = u
		},
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "ama@example.com", created.Email)
	assert.Equal(t, "Ama Mensah", created.Name)
	assert.Equal(t, auth.TypeClient, created.UserType)
	assert.False(t, created.IsEmailVerified)
	assert.False(t, created.IsApproved)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, "secret-pass-123", created.PasswordHash)

	require.Len(t, mailer.verifications, 1)
	assert.Equal(t, "ama@example.com", mailer.verifications[0].To)
	assert.NotEmpty(t, mailer.verifications[0].Token)

	users.AssertExpectations(t)
}

func TestRegisterUserRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	engine := auth.NewVerifyEngine[auth.ProfileData, *auth.User](newMemUserStore(),
		auth.WithEngineLogger(discardLogger{}))

	handler := auth.NewRegisterUserHandler(repo, engine, &recordingMailer{}, discardLogger{})

	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, "ama@example.com").
		Return(&auth.User{ID: uuid.New(), Email: "ama@example.com"}, nil).Once()

	err := handler.Execute(ctx, auth.RegisterUserMessage{
		Email:    "ama@example.com",
		Password: "secret-pass-123",
	})
	assert.ErrorIs(t, err, auth.ErrAlreadyRegistered)
	users.AssertExpectations(t)
}

func TestRegisterUserNeverGrantsAdminType(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	store := newMemUserStore()
	engine := auth.NewVerifyEngine[auth.ProfileData, *auth.User](store,
		auth.WithEngineLogger(discardLogger{}))

	handler := auth.NewRegisterUserHandler(repo, engine, nil, discardLogger{})

	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, "eve@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Run(func(args mock.Arguments) {
		user := args.Get(2).(*auth.User)
		user.ID = uuid.New()
		store.put(user)
	}).Once()

	var created *auth.User
	err := handler.Execute(ctx, auth.RegisterUserMessage{
		Email:    "eve@example.com",
		Password: "secret-pass-123",
		UserType: string(auth.TypeAdmin),
		OnResponse: func(u *auth.User) {
			created = u
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEqual(t, auth.TypeAdmin, created.UserType)
}

func TestRegisterUserRejectsShortPassword(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := &MockRepositoryManager{users: users}
	engine := auth.NewVerifyEngine[auth.ProfileData, *auth.User](newMemUserStore(),
		auth.WithEngineLogger(discardLogger{}))

	handler := auth.NewRegisterUserHandler(repo, engine, nil, discardLogger{})

	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, "ama@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()

	err := handler.Execute(ctx, auth.RegisterUserMessage{
		Email:    "ama@example.com",
		Password: "short",
	})
	assert.Error(t, err)
}
