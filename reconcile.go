package session

import "context"

// eventHandler builds the provider event callback for the given generation.
// The subscription is the single source of truth for user/session
// transitions outside of sign-out and password setup.
func (c *Controller) eventHandler(gen uint64) EventHandler {
	return func(kind EventKind, sess *Session) {
		c.applyEvent(gen, kind, sess)
	}
}

// applyEvent normalizes a provider event into AuthState: resolve the
// profile, overwrite the session-derived fields atomically, and keep the
// expiry watcher in lockstep with session presence. Applying the same event
// twice leaves the state unchanged.
func (c *Controller) applyEvent(gen uint64, kind EventKind, sess *Session) {
	ctx := context.Background()

	var profile *Profile
	if sess != nil && sess.Subject != "" {
		profile = c.lookupProfile(ctx, sess.Subject)
	}

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		return
	}
	if c.staleEvent(sess) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale %s event", kind)
		return
	}

	c.state.User = profile
	c.state.Session = sess
	c.state.PasswordSet = profile != nil && profile.PasswordSet
	if kind == EventPasswordRecovery {
		// the user followed a recovery link: route them into password
		// setup even when the stored profile flag says otherwise
		c.state.PasswordSet = false
	}
	c.state.SessionTimeRemaining = sess.TimeRemaining(c.now())
	c.state.Loading = false
	active := sess != nil
	c.mu.Unlock()

	if active {
		c.startWatcher(gen)
	} else {
		c.stopWatcher()
	}

	var subject string
	if sess != nil {
		subject = sess.Subject
	}
	c.record(ctx, ActivityEventSessionReconciled, subject, map[string]any{
		"kind": string(kind),
	})
}

// staleEvent reports whether the incoming session was superseded by one
// already applied. Providers in the GoTrue family do not guarantee ordered
// delivery, so overwrites are keyed on the session's expiry instant: an
// event whose session expires before the one we hold is a leftover from a
// previous grant. A nil session (signed out) always applies; only a fresh
// event may undo it. Caller holds the mutex.
func (c *Controller) staleEvent(sess *Session) bool {
	if sess == nil || c.state.Session == nil {
		return false
	}
	return sess.ExpiresAt.Before(c.state.Session.ExpiresAt)
}
