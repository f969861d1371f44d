package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess     ActivityEventType = "session.signin.success"
	ActivityEventSignInFailure     ActivityEventType = "session.signin.failure"
	ActivityEventSignUpSuccess     ActivityEventType = "session.signup.success"
	ActivityEventSignUpFailure     ActivityEventType = "session.signup.failure"
	ActivityEventSignUpProfileErr  ActivityEventType = "session.signup.profile_error"
	ActivityEventMagicLinkSent     ActivityEventType = "session.magiclink.sent"
	ActivityEventMagicLinkFailure  ActivityEventType = "session.magiclink.failure"
	ActivityEventPasswordSetup     ActivityEventType = "session.password.setup"
	ActivityEventSignOut           ActivityEventType = "session.signout"
	ActivityEventSessionRefreshed  ActivityEventType = "session.refreshed"
	ActivityEventSessionReconciled ActivityEventType = "session.reconciled"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Subject    string
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
