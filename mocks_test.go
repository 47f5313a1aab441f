package marketplace_test

import (
	"context"
	"sync"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// errRecordMissing is the not-found shape the SQL repositories produce.
var errRecordMissing = repository.NewRecordNotFound()

// discardLogger keeps test output quiet.
type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

// recordingSink captures the activity events an operation emits.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// recordingMailer captures outgoing mail instead of sending it.
type recordingMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
}

type sentMail struct {
	To    string
	Name  string
	Token string
}

func (m *recordingMailer) SendVerification(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, sentMail{To: to, Name: name, Token: token})
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{To: to, Name: name, Token: token})
	return nil
}

// memUserStore is an in-memory VerificationStore[*User]. It mirrors the SQL
// repository's conditional-update behavior: SaveStaged fails when the stored
// row already has a proposal pending, SaveResolved when it has none.
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*auth.User
}

func newMemUserStore(users ...*auth.User) *memUserStore {
	s := &memUserStore{users: map[uuid.UUID]*auth.User{}}
	for _, u := range users {
		cp := *u
		s.users[u.ID] = &cp
	}
	return s
}

func (s *memUserStore) get(id uuid.UUID) (*auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, errRecordMissing
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) put(u *auth.User) *auth.User {
	cp := *u
	s.users[u.ID] = &cp
	out := cp
	return &out
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *memUserStore) SaveStaged(_ context.Context, record *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.get(record.ID)
	if err != nil {
		return nil, err
	}
	if current.HasPendingChanges {
		return nil, auth.ErrStagingConflict
	}
	return s.put(record), nil
}

func (s *memUserStore) SaveResolved(_ context.Context, record *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.get(record.ID)
	if err != nil {
		return nil, err
	}
	if !current.HasPendingChanges {
		return nil, auth.ErrStagingConflict
	}
	return s.put(record), nil
}

func (s *memUserStore) SaveApproval(_ context.Context, record *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(record.ID); err != nil {
		return nil, err
	}
	return s.put(record), nil
}

func (s *memUserStore) SaveVerification(_ context.Context, record *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(record.ID); err != nil {
		return nil, err
	}
	return s.put(record), nil
}

func (s *memUserStore) GetByVerificationToken(_ context.Context, token string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return nil, errRecordMissing
	}
	for _, u := range s.users {
		if u.VerificationToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errRecordMissing
}

// memProviderStore is the provider flavor, without the verification methods.
type memProviderStore struct {
	mu        sync.Mutex
	providers map[uuid.UUID]*auth.Provider
}

func newMemProviderStore(providers ...*auth.Provider) *memProviderStore {
	s := &memProviderStore{providers: map[uuid.UUID]*auth.Provider{}}
	for _, p := range providers {
		cp := *p
		s.providers[p.ID] = &cp
	}
	return s
}

func (s *memProviderStore) get(id uuid.UUID) (*auth.Provider, error) {
	p, ok := s.providers[id]
	if !ok {
		return nil, errRecordMissing
	}
	cp := *p
	return &cp, nil
}

func (s *memProviderStore) put(p *auth.Provider) *auth.Provider {
	cp := *p
	s.providers[p.ID] = &cp
	out := cp
	return &out
}

func (s *memProviderStore) GetByID(_ context.Context, id uuid.UUID) (*auth.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *memProviderStore) SaveStaged(_ context.Context, record *auth.Provider) (*auth.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.get(record.ID)
	if err != nil {
		return nil, err
	}
	if current.HasPendingChanges {
		return nil, auth.ErrStagingConflict
	}
	return s.put(record), nil
}

func (s *memProviderStore) SaveResolved(_ context.Context, record *auth.Provider) (*auth.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.get(record.ID)
	if err != nil {
		return nil, err
	}
	if !current.HasPendingChanges {
		return nil, auth.ErrStagingConflict
	}
	return s.put(record), nil
}

func (s *memProviderStore) SaveApproval(_ context.Context, record *auth.Provider) (*auth.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(record.ID); err != nil {
		return nil, err
	}
	return s.put(record), nil
}

// fixedClock returns a clock frozen at t that tests can advance.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{t: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func strPtr(s string) *string { return &s }
