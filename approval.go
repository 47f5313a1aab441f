package marketplace

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultVerificationTokenTTL is how long an issued verification token lives.
const DefaultVerificationTokenTTL = 24 * time.Hour

// ApprovalRecord is the contract shared by every moderated record. User and
// Provider both satisfy it, so one engine serves both.
type ApprovalRecord[P any] interface {
	RecordID() uuid.UUID
	Approved() bool
	Blocked() bool
	Usable() bool
	PendingChanges() bool
	Published() P
	Pending() *P
	Stage(original, pending P, at time.Time)
	Resolve(accept bool, at time.Time)
	Approve(at time.Time)
	SetApproval(approved bool, at time.Time)
}

// VerifiableRecord adds the email verification token flow. Only User carries
// it; providers are gated on approval alone.
type VerifiableRecord[P any] interface {
	ApprovalRecord[P]
	EmailVerified() bool
	VerificationState() (string, *time.Time)
	SetVerification(token string, expiry *time.Time)
	MarkEmailVerified()
}

// Patch is a partial edit applied over a published snapshot.
type Patch[P any] interface {
	Apply(base P) P
}

// ApprovalStore persists moderated records. SaveStaged and SaveResolved are
// conditional on the record's pending flag so two racing writers cannot both
// win; implementations return ErrStagingConflict when the guarded update
// matches no rows.
type ApprovalStore[R any] interface {
	GetByID(ctx context.Context, id uuid.UUID) (R, error)
	SaveStaged(ctx context.Context, record R) (R, error)
	SaveResolved(ctx context.Context, record R) (R, error)
	SaveApproval(ctx context.Context, record R) (R, error)
}

// VerificationStore adds token lookup and persistence for verifiable records.
type VerificationStore[R any] interface {
	ApprovalStore[R]
	GetByVerificationToken(ctx context.Context, token string) (R, error)
	SaveVerification(ctx context.Context, record R) (R, error)
}

// EngineOption customizes engine construction.
type EngineOption func(*engineConfig)

type engineConfig struct {
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
	tokenTTL     time.Duration
	autoApprove  bool
}

// WithEngineClock injects a custom clock (useful for tests).
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(c *engineConfig) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithEngineActivitySink sets the ActivitySink used to publish moderation events.
func WithEngineActivitySink(sink ActivitySink) EngineOption {
	return func(c *engineConfig) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithEngineLogger overrides the logger used for sink failures.
func WithEngineLogger(logger Logger) EngineOption {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithVerificationTokenTTL overrides the verification token lifetime.
func WithVerificationTokenTTL(ttl time.Duration) EngineOption {
	return func(c *engineConfig) {
		if ttl > 0 {
			c.tokenTTL = ttl
		}
	}
}

// WithAutoApproveOnVerify makes a successful token redemption also approve
// the record, refreshing its approval timestamp even when already approved.
func WithAutoApproveOnVerify(enabled bool) EngineOption {
	return func(c *engineConfig) {
		c.autoApprove = enabled
	}
}

func buildEngineConfig(opts ...EngineOption) engineConfig {
	cfg := engineConfig{
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		tokenTTL:     DefaultVerificationTokenTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Engine runs the moderation workflow: staged edits, decisions and the
// administrator approval override.
type Engine[P any, R ApprovalRecord[P]] struct {
	store ApprovalStore[R]
	cfg   engineConfig
}

// NewEngine returns an engine backed by the provided store.
func NewEngine[P any, R ApprovalRecord[P]](store ApprovalStore[R], opts ...EngineOption) *Engine[P, R] {
	return &Engine[P, R]{
		store: store,
		cfg:   buildEngineConfig(opts...),
	}
}

// StageEdit applies the patch over the record's published snapshot and stages
// the result for review. The published values stay untouched until an
// administrator accepts. Unapproved records cannot stage, and a record with a
// proposal already pending rejects a second one.
func (e *Engine[P, R]) StageEdit(ctx context.Context, actor ActorRef, id uuid.UUID, patch Patch[P]) (R, error) {
	var zero R

	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}

	if record.Blocked() {
		return zero, ErrAccountBlocked.WithMetadata(map[string]any{"id": id.String()})
	}

	if !record.Approved() {
		return zero, ErrNotApproved.WithMetadata(map[string]any{"id": id.String()})
	}

	if record.PendingChanges() {
		return zero, ErrChangesAlreadyPending.WithMetadata(map[string]any{"id": id.String()})
	}

	published := record.Published()
	record.Stage(published, patch.Apply(published), e.cfg.now())

	saved, err := e.store.SaveStaged(ctx, record)
	if err != nil {
		return zero, err
	}

	e.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventEditStaged,
		Actor:     actor,
		RecordID:  id.String(),
	})

	return saved, nil
}

// DecidePendingChange accepts or rejects the staged proposal. Accepting
// copies the pending snapshot into the published fields and stamps the
// approval time; rejecting discards it. Both leave the record clean.
func (e *Engine[P, R]) DecidePendingChange(ctx context.Context, actor ActorRef, id uuid.UUID, accept bool) (R, error) {
	var zero R

	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}

	if !record.PendingChanges() {
		return zero, ErrNoPendingChange.WithMetadata(map[string]any{"id": id.String()})
	}

	record.Resolve(accept, e.cfg.now())

	saved, err := e.store.SaveResolved(ctx, record)
	if err != nil {
		return zero, err
	}

	eventType := ActivityEventEditRejected
	if accept {
		eventType = ActivityEventEditAccepted
	}
	e.recordActivity(ctx, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		RecordID:  id.String(),
	})

	return saved, nil
}

// AdminSetApproval is the administrator override for the approval flag. The
// approval timestamp only moves on the false to true transition; revoking
// approval leaves any staged proposal in place.
func (e *Engine[P, R]) AdminSetApproval(ctx context.Context, actor ActorRef, id uuid.UUID, approved bool) (R, error) {
	var zero R

	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}

	record.SetApproval(approved, e.cfg.now())

	saved, err := e.store.SaveApproval(ctx, record)
	if err != nil {
		return zero, err
	}

	e.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventApprovalChanged,
		Actor:     actor,
		RecordID:  id.String(),
		Metadata:  map[string]any{"approved": approved},
	})

	return saved, nil
}

// IsUsable reports whether the record may act in the system.
func (e *Engine[P, R]) IsUsable(record R) bool {
	return record.Usable()
}

func (e *Engine[P, R]) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.cfg.now()
	}

	sink := normalizeActivitySink(e.cfg.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		e.cfg.logger.Error("approval engine activity sink error: %v", err)
	}
}

// VerifyEngine extends the engine with the email verification token flow.
type VerifyEngine[P any, R VerifiableRecord[P]] struct {
	*Engine[P, R]
	store VerificationStore[R]
}

// NewVerifyEngine returns an engine for records that carry a verification flow.
func NewVerifyEngine[P any, R VerifiableRecord[P]](store VerificationStore[R], opts ...EngineOption) *VerifyEngine[P, R] {
	return &VerifyEngine[P, R]{
		Engine: NewEngine[P, R](store, opts...),
		store:  store,
	}
}

// IssueVerificationToken mints a fresh token for the record, overwriting any
// outstanding one, and returns the plaintext token for delivery.
func (e *VerifyEngine[P, R]) IssueVerificationToken(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	token, err := generateToken()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to generate verification token")
	}

	expiry := e.cfg.now().Add(e.cfg.tokenTTL)
	record.SetVerification(token, &expiry)

	if _, err := e.store.SaveVerification(ctx, record); err != nil {
		return "", err
	}

	e.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventVerificationIssued,
		RecordID:  id.String(),
	})

	return token, nil
}

// RedeemVerificationToken resolves a token back to its record, marks the
// email verified and clears the token. Unknown and expired tokens fail with
// the same error. With auto-approve enabled the record is also approved and
// its approval timestamp refreshed, even when it was approved already.
func (e *VerifyEngine[P, R]) RedeemVerificationToken(ctx context.Context, token string) (R, error) {
	var zero R

	if token == "" {
		return zero, ErrInvalidOrExpiredToken
	}

	record, err := e.store.GetByVerificationToken(ctx, token)
	if err != nil {
		return zero, ErrInvalidOrExpiredToken
	}

	stored, expiry := record.VerificationState()
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return zero, ErrInvalidOrExpiredToken
	}

	now := e.cfg.now()
	if expiry == nil || now.After(*expiry) {
		return zero, ErrInvalidOrExpiredToken
	}

	record.MarkEmailVerified()
	if e.cfg.autoApprove {
		record.Approve(now)
	}

	saved, err := e.store.SaveVerification(ctx, record)
	if err != nil {
		return zero, err
	}

	e.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventVerificationRedeem,
		RecordID:  record.RecordID().String(),
	})

	return saved, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
