package marketplace

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventEditStaged          ActivityEventType = "moderation.edit.staged"
	ActivityEventEditAccepted        ActivityEventType = "moderation.edit.accepted"
	ActivityEventEditRejected        ActivityEventType = "moderation.edit.rejected"
	ActivityEventApprovalChanged     ActivityEventType = "moderation.approval.changed"
	ActivityEventVerificationIssued  ActivityEventType = "verification.token.issued"
	ActivityEventVerificationRedeem  ActivityEventType = "verification.token.redeemed"
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin         ActivityEventType = "auth.social.login"
	ActivityEventPasswordResetIssued ActivityEventType = "auth.password.reset.issued"
	ActivityEventPasswordReset       ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	RecordID   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
