package gotrue

import "github.com/goliatone/go-session"

// GoTrue event names, as delivered by the provider's notification stream.
const (
	eventInitialSession   = "INITIAL_SESSION"
	eventSignedIn         = "SIGNED_IN"
	eventSignedOut        = "SIGNED_OUT"
	eventTokenRefreshed   = "TOKEN_REFRESHED"
	eventUserUpdated      = "USER_UPDATED"
	eventPasswordRecovery = "PASSWORD_RECOVERY"
)

// MapEventKind translates the provider's event taxonomy onto the
// controller's. Unknown names normalize to EventSessionChanged so new
// provider kinds degrade to a plain re-sync instead of being dropped.
func MapEventKind(name string) session.EventKind {
	switch name {
	case eventSignedIn, eventInitialSession:
		return session.EventSignedIn
	case eventSignedOut:
		return session.EventSignedOut
	case eventTokenRefreshed:
		return session.EventTokenRefreshed
	case eventUserUpdated:
		return session.EventUserUpdated
	case eventPasswordRecovery:
		return session.EventPasswordRecovery
	default:
		return session.EventSessionChanged
	}
}
