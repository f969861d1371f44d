package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
)

// Client talks to a GoTrue-style identity API and mirrors the provider's
// auth-state notifications to local subscribers: every successful call that
// changes the session emits the matching event, which is how the session
// controller observes outcomes.
type Client struct {
	config Config
	http   *http.Client
	jwks   *keyfunc.JWKS

	mu          sync.Mutex
	current     *session.Session
	subscribers map[int]session.EventHandler
	nextSub     int
}

var _ session.IdentityClient = (*Client)(nil)

// New creates a client for the configured GoTrue deployment.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var jwks *keyfunc.JWKS
	if cfg.JWKSURL != "" {
		ttl := cfg.JWKSCacheTTL
		if ttl == 0 {
			ttl = time.Hour
		}
		var err error
		jwks, err = keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   ttl,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("gotrue: failed to load JWK set: %w", err)
		}
	}

	return &Client{
		config:      cfg,
		http:        cfg.httpClient(),
		jwks:        jwks,
		subscribers: map[int]session.EventHandler{},
	}, nil
}

// GetSession returns the client's current session, nil when signed out.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, nil
	}
	sess := *c.current
	return &sess, nil
}

// GetCurrentUser resolves the signed-in subject. When the local session does
// not carry one (opaque tokens), the provider's user endpoint is asked.
func (c *Client) GetCurrentUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	var subject, token string
	if c.current != nil {
		subject = c.current.Subject
		token = c.current.AccessToken
	}
	c.mu.Unlock()

	if subject != "" || token == "" {
		return subject, nil
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, "/user", token, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

// RestoreSession installs a previously persisted token pair, typically at
// application startup, and announces it as the initial session.
func (c *Client) RestoreSession(ctx context.Context, accessToken, refreshToken string) error {
	sess, err := c.sessionFromToken(tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, time.Now())
	if err != nil {
		return err
	}

	c.setSession(sess)
	c.emit(MapEventKind(eventInitialSession), sess)
	return nil
}

// SignInWithPassword exchanges credentials through the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	var tr tokenResponse
	err := c.post(ctx, "/token?grant_type=password", map[string]any{
		"email":    email,
		"password": password,
	}, "", &tr)
	if err != nil {
		return err
	}

	sess, err := c.sessionFromToken(tr, time.Now())
	if err != nil {
		return err
	}

	c.setSession(sess)
	c.emit(MapEventKind(eventSignedIn), sess)
	return nil
}

// SignInWithOneTimeLink asks the provider to email a one-time link. With
// createIfMissing false the provider rejects addresses it does not know.
func (c *Client) SignInWithOneTimeLink(ctx context.Context, email string, createIfMissing bool) error {
	body := map[string]any{
		"email":       email,
		"create_user": createIfMissing,
	}
	if c.config.RedirectTo != "" {
		body["redirect_to"] = c.config.RedirectTo
	}
	return c.post(ctx, "/otp", body, "", nil)
}

// SignUp registers a new identity and returns its subject identifier.
func (c *Client) SignUp(ctx context.Context, email, credential string, attributes map[string]any) (string, error) {
	payload := map[string]any{
		"email":    email,
		"password": credential,
	}
	if len(attributes) > 0 {
		payload["data"] = attributes
	}

	var tr tokenResponse
	if err := c.post(ctx, "/signup", payload, "", &tr); err != nil {
		return "", err
	}

	// deployments with autoconfirm hand back a live session right away
	if tr.AccessToken != "" {
		if sess, err := c.sessionFromToken(tr, time.Now()); err == nil {
			c.setSession(sess)
			c.emit(MapEventKind(eventSignedIn), sess)
		}
	}

	return tr.User.ID, nil
}

// UpdateCredential sets a new password on the signed-in identity.
func (c *Client) UpdateCredential(ctx context.Context, newPassword string) error {
	token := c.accessToken()
	if token == "" {
		return goerrors.New("no session to update", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	if err := c.put(ctx, "/user", map[string]any{"password": newPassword}, token); err != nil {
		return err
	}

	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()
	c.emit(MapEventKind(eventUserUpdated), sess)
	return nil
}

// SignOut revokes the session server-side and clears the local one. The
// signed-out event fires even when revocation fails: the caller's local
// state has to reset either way.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.accessToken()

	var err error
	if token != "" {
		err = c.post(ctx, "/logout", nil, token, nil)
	}

	c.setSession(nil)
	c.emit(MapEventKind(eventSignedOut), nil)
	return err
}

// RefreshSession exchanges the refresh token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	var refreshToken string
	if c.current != nil {
		refreshToken = c.current.RefreshToken
	}
	c.mu.Unlock()

	if refreshToken == "" {
		return nil, goerrors.New("no refresh token available", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	var tr tokenResponse
	err := c.post(ctx, "/token?grant_type=refresh_token", map[string]any{
		"refresh_token": refreshToken,
	}, "", &tr)
	if err != nil {
		return nil, err
	}

	sess, err := c.sessionFromToken(tr, time.Now())
	if err != nil {
		return nil, err
	}

	c.setSession(sess)
	c.emit(MapEventKind(eventTokenRefreshed), sess)
	return sess, nil
}

// CompleteRecovery installs the token pair carried by a recovery or magic
// link redirect and routes subscribers into the password setup flow.
func (c *Client) CompleteRecovery(ctx context.Context, accessToken, refreshToken string) error {
	sess, err := c.sessionFromToken(tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, time.Now())
	if err != nil {
		return err
	}

	c.setSession(sess)
	c.emit(MapEventKind(eventPasswordRecovery), sess)
	return nil
}

// Subscribe registers a handler for auth-state events. The returned
// function releases the subscription; calling it more than once is safe.
func (c *Client) Subscribe(handler session.EventHandler) session.Unsubscribe {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = handler
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) setSession(sess *session.Session) {
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

func (c *Client) emit(kind session.EventKind, sess *session.Session) {
	c.mu.Lock()
	handlers := make([]session.EventHandler, 0, len(c.subscribers))
	for _, h := range c.subscribers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		var copySess *session.Session
		if sess != nil {
			s := *sess
			copySess = &s
		}
		h(kind, copySess)
	}
}

func (c *Client) post(ctx context.Context, path string, body any, bearer string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, bearer, out)
}

func (c *Client) put(ctx context.Context, path string, body any, bearer string) error {
	return c.do(ctx, http.MethodPut, path, body, bearer, nil)
}

func (c *Client) get(ctx context.Context, path, bearer string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, bearer, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gotrue: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.authURL(path), reader)
	if err != nil {
		return fmt.Errorf("gotrue: failed to build request: %w", err)
	}

	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.config.AnonKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read provider response")
	}

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("gotrue: failed to decode response: %w", err)
		}
	}
	return nil
}

// apiError converts GoTrue's error payloads into rich errors. Credential
// rejections keep their provider message so the UI can render it verbatim.
func apiError(status int, payload []byte) error {
	var body struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
	}
	_ = json.Unmarshal(payload, &body)

	message := body.Description
	if message == "" {
		message = body.Msg
	}
	if message == "" {
		message = body.Message
	}
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = fmt.Sprintf("provider returned status %d", status)
	}

	category := goerrors.CategoryOperation
	code := goerrors.CodeInternal
	if status == http.StatusBadRequest || status == http.StatusUnauthorized ||
		status == http.StatusForbidden || status == http.StatusUnprocessableEntity {
		category = goerrors.CategoryAuth
		code = goerrors.CodeUnauthorized
	}

	return goerrors.New(message, category).
		WithCode(code).
		WithMetadata(map[string]any{"status": status})
}
