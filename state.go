package session

import "time"

// AuthState is the authoritative view of "who is signed in". A single value
// lives inside the controller for its whole lifetime and is only ever
// transitioned, never recreated. Consumers read copies via Controller.State.
type AuthState struct {
	// User is the application profile of the signed-in principal. Present
	// only when a provider session exists and a matching profile was found.
	User *Profile

	// Session is the provider session handle, nil when signed out.
	Session *Session

	// Loading reports an in-flight controller operation.
	Loading bool

	// Initialized flips to true exactly once, when the startup sequence
	// completes. It never reverts.
	Initialized bool

	// PasswordSet mirrors User.PasswordSet; false when User is absent. A
	// password-recovery event forces it to false regardless of the profile.
	PasswordSet bool

	// SessionTimeRemaining is recomputed from Session.ExpiresAt, never
	// persisted and never negative.
	SessionTimeRemaining time.Duration

	// DeviceTrusted mirrors the device trust store's remember-me flag.
	DeviceTrusted bool
}

// SignedIn reports whether a profile-backed session is active.
func (s AuthState) SignedIn() bool {
	return s.User != nil && s.Session != nil
}

// NeedsPasswordSetup reports whether the principal is authenticated but has
// not finished credential setup yet.
func (s AuthState) NeedsPasswordSetup() bool {
	return s.User != nil && !s.PasswordSet
}

// clone returns a copy safe to hand to consumers, with the remaining time
// recomputed against the supplied instant.
func (s AuthState) clone(now time.Time) AuthState {
	out := s
	out.SessionTimeRemaining = s.Session.TimeRemaining(now)
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	return out
}
