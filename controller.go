package session

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// placeholderCredential seeds a newly registered identity until the user
// completes password setup through the one-time link flow.
const placeholderCredential = "temporary-password"

// DefaultWatchInterval is how often the expiry watcher recomputes the
// remaining session time while a session is active.
const DefaultWatchInterval = time.Minute

// DefaultRefreshThreshold is the remaining-time bound below which the
// watcher triggers a best-effort session refresh.
const DefaultRefreshThreshold = time.Hour

// Controller owns the authoritative AuthState and is its single writer. It
// is constructed with its three collaborators injected so tests can
// substitute fakes; there is no ambient/global instance.
//
// A nil IdentityClient puts the controller in degraded mode: it reports
// "signed out" forever and every action short-circuits with
// ErrProviderUnavailable before any I/O.
type Controller struct {
	mu    sync.Mutex
	state AuthState

	client   IdentityClient
	profiles ProfileStore
	trust    DeviceTrustStore

	logger           Logger
	sink             ActivitySink
	now              func() time.Time
	watchInterval    time.Duration
	refreshThreshold time.Duration

	// generation guards asynchronous completions: each one captures the
	// value at dispatch and discards its write if Close bumped it since.
	generation uint64
	started    bool
	closed     bool

	refreshing  bool
	unsubscribe Unsubscribe
	watchStop   chan struct{}
}

// New creates a Controller wired to the given collaborators. Pass a nil
// client to run in degraded mode. A nil trust store behaves like a fresh
// device (in-memory, starts untrusted).
func New(client IdentityClient, profiles ProfileStore, trust DeviceTrustStore, opts ...Option) *Controller {
	if trust == nil {
		trust = NewMemoryTrustStore()
	}

	c := &Controller{
		client:           client,
		profiles:         profiles,
		trust:            trust,
		logger:           defLogger{},
		sink:             noopActivitySink{},
		now:              time.Now,
		watchInterval:    DefaultWatchInterval,
		refreshThreshold: DefaultRefreshThreshold,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Start runs the one-time initialization sequence: resolve the current
// provider session, resolve its profile, publish the initial state, start
// the expiry watcher when a session is active, and subscribe to provider
// events. Calling Start more than once is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	gen := c.generation
	degraded := c.client == nil
	c.mu.Unlock()

	if degraded {
		c.logger.Warn("no identity client configured, running in degraded mode")
		c.mu.Lock()
		c.state.Loading = false
		c.state.Initialized = true
		c.mu.Unlock()
		return nil
	}

	sess, err := c.client.GetSession(ctx)
	if err != nil {
		// non-fatal: continue as signed out
		c.logger.Error("initial session lookup failed: %v", err)
		sess = nil
	}

	var profile *Profile
	if sess != nil && sess.Subject != "" {
		profile = c.lookupProfile(ctx, sess.Subject)
	}

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.User = profile
	c.state.Session = sess
	c.state.Loading = false
	c.state.Initialized = true
	c.state.PasswordSet = profile != nil && profile.PasswordSet
	c.state.SessionTimeRemaining = sess.TimeRemaining(c.now())
	c.state.DeviceTrusted = c.trust.Read()
	active := sess != nil
	c.mu.Unlock()

	if active {
		c.startWatcher(gen)
	}

	unsub := c.client.Subscribe(c.eventHandler(gen))
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return nil
	}
	c.unsubscribe = unsub
	c.mu.Unlock()

	return nil
}

// Close tears the controller down: the watcher stops, the provider
// subscription is released, and any in-flight completion that lands
// afterwards is silently discarded. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	c.stopWatcher()

	if unsub != nil {
		unsub()
	}
}

// State returns a consumer-safe snapshot with the remaining session time
// recomputed against the current clock.
func (c *Controller) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone(c.now())
}

// SignInWithPassword delegates credential verification to the provider.
// Success is observed through the event subscription, not the return value.
func (c *Controller) SignInWithPassword(ctx context.Context, email, password string) error {
	if _, err := c.guardAction(); err != nil {
		return err
	}

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email address")
	}
	if err := validation.Validate(password, validation.Required); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "password is required")
	}

	c.setLoading(true)

	if err := c.client.SignInWithPassword(ctx, email, password); err != nil {
		c.setLoading(false)
		c.record(ctx, ActivityEventSignInFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return goerrors.Wrap(err, goerrors.CategoryAuth, "sign in failed").
			WithTextCode(textCodeInvalidCredentials).
			WithCode(goerrors.CodeUnauthorized)
	}

	c.record(ctx, ActivityEventSignInSuccess, "", map[string]any{"email": email})
	return nil
}

// SignUpWithEmail creates the provider identity with a placeholder
// credential, then inserts the application profile. A profile insert failure
// is logged but does not fail the action: the identity already exists and
// has to remain usable.
func (c *Controller) SignUpWithEmail(ctx context.Context, email, displayName string) error {
	if _, err := c.guardAction(); err != nil {
		return err
	}

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email address")
	}
	if err := validation.Validate(displayName, validation.Required, validation.Length(1, 200)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid display name")
	}

	c.setLoading(true)

	subject, err := c.client.SignUp(ctx, email, placeholderCredential, map[string]any{
		"display_name": displayName,
	})
	if err != nil {
		c.setLoading(false)
		c.record(ctx, ActivityEventSignUpFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return goerrors.Wrap(err, goerrors.CategoryAuth, "sign up failed")
	}

	if c.profiles != nil {
		profile := &Profile{
			AuthID:      subject,
			Email:       email,
			DisplayName: displayName,
			Role:        RoleOrganizer,
			IsActive:    true,
			PasswordSet: false,
		}
		if err := c.profiles.Insert(ctx, profile); err != nil {
			c.logger.Error("profile insert failed for %s: %v", email, err)
			c.record(ctx, ActivityEventSignUpProfileErr, subject, map[string]any{
				"email": email,
				"error": err.Error(),
			})
		}
	}

	c.record(ctx, ActivityEventSignUpSuccess, subject, map[string]any{"email": email})
	return nil
}

// SignInWithMagicLink requests a one-time link for an existing identity; the
// provider is told not to create one. The link completes out of band, so
// loading is cleared as soon as the request is accepted.
func (c *Controller) SignInWithMagicLink(ctx context.Context, email string) error {
	if _, err := c.guardAction(); err != nil {
		return err
	}

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email address")
	}

	c.setLoading(true)

	if err := c.client.SignInWithOneTimeLink(ctx, email, false); err != nil {
		c.setLoading(false)
		c.record(ctx, ActivityEventMagicLinkFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return goerrors.Wrap(err, goerrors.CategoryAuth, "one time link request failed")
	}

	c.setLoading(false)
	c.record(ctx, ActivityEventMagicLinkSent, "", map[string]any{"email": email})
	return nil
}

// SetupPassword sets the new credential at the provider and marks the
// profile's durable password_set flag. On success it flips
// AuthState.PasswordSet immediately: password setup is a local-only profile
// change the event stream cannot otherwise observe, so this is the one
// action allowed to mutate state outside the event subscription.
func (c *Controller) SetupPassword(ctx context.Context, newPassword string) error {
	gen, err := c.guardAction()
	if err != nil {
		return err
	}

	if err := validation.Validate(newPassword, validation.Required, validation.Length(6, 100)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid password")
	}

	c.mu.Lock()
	var subject string
	if c.state.Session != nil {
		subject = c.state.Session.Subject
	}
	c.mu.Unlock()

	if subject == "" {
		return ErrNotSignedIn
	}

	c.setLoading(true)

	if err := c.client.UpdateCredential(ctx, newPassword); err != nil {
		c.setLoading(false)
		return goerrors.Wrap(err, goerrors.CategoryAuth, "failed to set password")
	}

	if c.profiles != nil {
		fields := map[string]any{"password_set": true}
		if err := c.profiles.UpdateBySubject(ctx, subject, fields); err != nil {
			c.logger.Error("failed to persist password_set flag for %s: %v", subject, err)
		}
	}

	c.mu.Lock()
	if c.generation == gen && !c.closed {
		c.state.PasswordSet = true
		if c.state.User != nil {
			c.state.User.PasswordSet = true
		}
		c.state.Loading = false
	}
	c.mu.Unlock()

	c.record(ctx, ActivityEventPasswordSetup, subject, nil)
	return nil
}

// SignOut calls the provider, clears device trust, and resets AuthState to
// signed-out defaults. The local reset is unconditional: a provider failure
// is reported to the caller but never leaves a half-signed-in state behind.
func (c *Controller) SignOut(ctx context.Context) error {
	gen, err := c.guardAction()
	if err != nil {
		return err
	}

	c.setLoading(true)

	provErr := c.client.SignOut(ctx)
	if provErr != nil {
		c.logger.Error("provider sign out failed: %v", provErr)
	}

	if err := c.trust.Clear(); err != nil {
		c.logger.Error("failed to clear device trust: %v", err)
	}

	c.stopWatcher()

	c.mu.Lock()
	if c.generation == gen && !c.closed {
		c.state = AuthState{
			Initialized:   true,
			DeviceTrusted: c.trust.Read(),
		}
	}
	c.mu.Unlock()

	c.record(ctx, ActivityEventSignOut, "", nil)

	if provErr != nil {
		return goerrors.Wrap(provErr, goerrors.CategoryOperation, "provider sign out failed")
	}
	return nil
}

// RefreshSession asks the provider for a fresh session. Best effort and
// silent: on success only the session handle and remaining time change, on
// failure the state is left untouched for a later event or tick to
// reconcile. Concurrent calls collapse into one in-flight refresh.
func (c *Controller) RefreshSession(ctx context.Context) {
	c.mu.Lock()
	if c.client == nil || c.closed || c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	gen := c.generation
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	sess, err := c.client.RefreshSession(ctx)
	if err != nil {
		c.logger.Error("session refresh failed: %v", err)
		return
	}
	if sess == nil {
		return
	}

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Session = sess
	c.state.SessionTimeRemaining = sess.TimeRemaining(c.now())
	c.mu.Unlock()

	c.record(ctx, ActivityEventSessionRefreshed, sess.Subject, nil)
}

// SetRememberMe persists the remember-me preference and mirrors the store's
// reading back into state. Local only, so it works in degraded mode too.
func (c *Controller) SetRememberMe(remember bool) {
	var err error
	if remember {
		err = c.trust.Write(true)
	} else {
		err = c.trust.Clear()
	}
	if err != nil {
		c.logger.Error("device trust store write failed: %v", err)
	}

	c.mu.Lock()
	if !c.closed {
		c.state.DeviceTrusted = c.trust.Read()
	}
	c.mu.Unlock()
}

// guardAction rejects actions on a closed or degraded controller and hands
// back the generation the caller's completion has to check against.
func (c *Controller) guardAction() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrControllerClosed
	}
	if c.client == nil {
		return 0, ErrProviderUnavailable
	}
	return c.generation, nil
}

func (c *Controller) setLoading(loading bool) {
	c.mu.Lock()
	if !c.closed {
		c.state.Loading = loading
	}
	c.mu.Unlock()
}

// lookupProfile resolves a subject to a profile. Failures are tolerated:
// a session without a profile is representable and must not crash the
// controller, so everything degrades to nil.
func (c *Controller) lookupProfile(ctx context.Context, subject string) *Profile {
	if c.profiles == nil {
		return nil
	}

	profile, err := c.profiles.FetchBySubject(ctx, subject)
	if err != nil {
		if IsProfileNotFound(err) {
			c.logger.Debug("no profile for subject %s", subject)
		} else {
			c.logger.Error("profile lookup failed for %s: %v", subject, err)
		}
		return nil
	}

	if profile != nil {
		profile.EnsureRole()
	}
	return profile
}

func (c *Controller) record(ctx context.Context, eventType ActivityEventType, subject string, metadata map[string]any) {
	sink := normalizeActivitySink(c.sink)
	event := ActivityEvent{
		EventType:  eventType,
		Subject:    subject,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}

	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
