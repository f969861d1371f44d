package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// EventKind classifies identity provider push events. Provider clients are
// responsible for mapping their own event taxonomy onto this set; kinds a
// client cannot classify should be reported as EventSessionChanged.
type EventKind string

const (
	// EventSignedIn is delivered when the provider establishes a session.
	EventSignedIn EventKind = "signed_in"
	// EventSignedOut is delivered when the provider terminates a session.
	EventSignedOut EventKind = "signed_out"
	// EventTokenRefreshed is delivered after a successful token refresh.
	EventTokenRefreshed EventKind = "token_refreshed"
	// EventUserUpdated is delivered when provider-side identity attributes change.
	EventUserUpdated EventKind = "user_updated"
	// EventPasswordRecovery is delivered when the user followed a recovery
	// link and must set a new credential before proceeding.
	EventPasswordRecovery EventKind = "password_recovery"
	// EventSessionChanged is the catch-all for provider kinds we do not map.
	EventSessionChanged EventKind = "session_changed"
)

// EventHandler receives provider push events. The session argument is nil
// when the event describes a signed-out state.
type EventHandler func(kind EventKind, session *Session)

// Unsubscribe releases an event subscription. Safe to call more than once.
type Unsubscribe func()

// IdentityClient is the contract a concrete identity provider client has to
// satisfy. The controller treats it as a black box: token formats, transport
// and retry policy are the client's concern.
type IdentityClient interface {
	GetSession(ctx context.Context) (*Session, error)
	// GetCurrentUser resolves the signed-in subject, empty when signed out.
	GetCurrentUser(ctx context.Context) (string, error)
	SignInWithPassword(ctx context.Context, email, password string) error
	SignInWithOneTimeLink(ctx context.Context, email string, createIfMissing bool) error
	SignUp(ctx context.Context, email, credential string, attributes map[string]any) (string, error)
	UpdateCredential(ctx context.Context, newPassword string) error
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*Session, error)
	Subscribe(handler EventHandler) Unsubscribe
}

// ProfileStore reads and updates application profiles keyed by the
// provider's subject identifier.
type ProfileStore interface {
	FetchBySubject(ctx context.Context, subject string) (*Profile, error)
	Insert(ctx context.Context, profile *Profile) error
	UpdateBySubject(ctx context.Context, subject string, fields map[string]any) error
}

// DeviceTrustStore is the durable remember-me flag, scoped to the local
// device. Read never fabricates a value: a missing or unreadable flag is false.
type DeviceTrustStore interface {
	Read() bool
	Write(trusted bool) error
	Clear() error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
