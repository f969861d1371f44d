package session_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// testNow is the fixed instant test controllers run on via WithClock.
var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testSession(subject string, ttl time.Duration) *session.Session {
	issued := testNow
	return &session.Session{
		Subject:      subject,
		AccessToken:  "access-" + subject,
		RefreshToken: "refresh-" + subject,
		TokenType:    "bearer",
		IssuedAt:     &issued,
		ExpiresAt:    testNow.Add(ttl),
	}
}

func testProfile(subject string, passwordSet bool) *session.Profile {
	return &session.Profile{
		ID:          uuid.New(),
		Email:       subject + "@example.com",
		DisplayName: "Test " + subject,
		Role:        session.RoleOrganizer,
		IsActive:    true,
		AuthID:      subject,
		PasswordSet: passwordSet,
	}
}

func newController(client session.IdentityClient, store session.ProfileStore, opts ...session.Option) (*session.Controller, *captureSink) {
	sink := &captureSink{}
	base := []session.Option{
		session.WithLogger(nopLogger{}),
		session.WithActivitySink(sink),
		session.WithClock(func() time.Time { return testNow }),
	}
	return session.New(client, store, nil, append(base, opts...)...), sink
}

func withShortWatchInterval() session.Option {
	return session.WithWatchInterval(5 * time.Millisecond)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// fakeIdentityClient is a scriptable session.IdentityClient. Like a real
// provider client it pushes events to subscribers when a call changes the
// session, so controller tests observe the same flow production does.
type fakeIdentityClient struct {
	mu sync.Mutex

	session       *session.Session
	getErr        error
	signInSession *session.Session
	signInErr     error
	signUpSubject string
	signUpErr     error
	otpErr        error
	updateErr     error
	signOutErr    error
	refreshResult *session.Session
	refreshErr    error
	refreshDelay  time.Duration

	signInCalls  int
	signUpCalls  int
	otpCalls     []otpRequest
	updateCalls  []string
	signOutCalls int
	refreshCalls int

	handlers map[int]session.EventHandler
	nextSub  int
}

type otpRequest struct {
	email  string
	create bool
}

var _ session.IdentityClient = (*fakeIdentityClient)(nil)

func (f *fakeIdentityClient) GetSession(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.session == nil {
		return nil, nil
	}
	sess := *f.session
	return &sess, nil
}

func (f *fakeIdentityClient) GetCurrentUser(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return "", nil
	}
	return f.session.Subject, nil
}

func (f *fakeIdentityClient) SignInWithPassword(ctx context.Context, email, password string) error {
	f.mu.Lock()
	f.signInCalls++
	err := f.signInErr
	sess := f.signInSession
	if err == nil {
		f.session = sess
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.emit(session.EventSignedIn, sess)
	return nil
}

func (f *fakeIdentityClient) SignInWithOneTimeLink(ctx context.Context, email string, createIfMissing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls = append(f.otpCalls, otpRequest{email: email, create: createIfMissing})
	return f.otpErr
}

func (f *fakeIdentityClient) SignUp(ctx context.Context, email, credential string, attributes map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	if f.signUpErr != nil {
		return "", f.signUpErr
	}
	return f.signUpSubject, nil
}

func (f *fakeIdentityClient) UpdateCredential(ctx context.Context, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, newPassword)
	return f.updateErr
}

func (f *fakeIdentityClient) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	err := f.signOutErr
	f.session = nil
	f.mu.Unlock()

	f.emit(session.EventSignedOut, nil)
	return err
}

func (f *fakeIdentityClient) RefreshSession(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	f.refreshCalls++
	delay := f.refreshDelay
	result, err := f.refreshResult, f.refreshErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	sess := *result
	f.mu.Lock()
	f.session = &sess
	f.mu.Unlock()
	return &sess, nil
}

func (f *fakeIdentityClient) Subscribe(handler session.EventHandler) session.Unsubscribe {
	f.mu.Lock()
	if f.handlers == nil {
		f.handlers = map[int]session.EventHandler{}
	}
	id := f.nextSub
	f.nextSub++
	f.handlers[id] = handler
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

// emit delivers an event to every subscriber, synchronously, the way the
// gotrue client does.
func (f *fakeIdentityClient) emit(kind session.EventKind, sess *session.Session) {
	f.mu.Lock()
	handlers := make([]session.EventHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		var copySess *session.Session
		if sess != nil {
			s := *sess
			copySess = &s
		}
		h(kind, copySess)
	}
}

func (f *fakeIdentityClient) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// fakeProfileStore is an in-memory session.ProfileStore keyed by subject.
type fakeProfileStore struct {
	mu        sync.Mutex
	profiles  map[string]*session.Profile
	fetchErr  error
	insertErr error
	updateErr error

	inserted []*session.Profile
	updates  []profileUpdate
}

type profileUpdate struct {
	subject string
	fields  map[string]any
}

var _ session.ProfileStore = (*fakeProfileStore)(nil)

func newFakeProfileStore(records ...*session.Profile) *fakeProfileStore {
	store := &fakeProfileStore{profiles: map[string]*session.Profile{}}
	for _, p := range records {
		store.profiles[p.AuthID] = p
	}
	return store
}

func (s *fakeProfileStore) FetchBySubject(ctx context.Context, subject string) (*session.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	record, ok := s.profiles[subject]
	if !ok {
		return nil, session.ErrProfileNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *fakeProfileStore) Insert(ctx context.Context, profile *session.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, profile)
	s.profiles[profile.AuthID] = profile
	return nil
}

func (s *fakeProfileStore) UpdateBySubject(ctx context.Context, subject string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, profileUpdate{subject: subject, fields: fields})
	if s.updateErr != nil {
		return s.updateErr
	}
	record, ok := s.profiles[subject]
	if !ok {
		return session.ErrProfileNotFound
	}
	if v, ok := fields["password_set"].(bool); ok {
		record.PasswordSet = v
	}
	return nil
}

// captureSink records every activity event for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

var _ session.ActivitySink = (*captureSink)(nil)

func (s *captureSink) Record(ctx context.Context, event session.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) has(eventType session.ActivityEventType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

// MockContext mocks router.Context for guard tests. The handful of methods
// the guard touches record their inputs directly; everything else goes
// through testify's expectation machinery.
type MockContext struct {
	mock.Mock
	NextCalled bool
	Route      string
	Verb       string

	RedirectPath   string
	RedirectStatus int
	StatusCode     int
	SentBody       string
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Path() string {
	return m.Route
}

func (m *MockContext) Method() string {
	return m.Verb
}

func (m *MockContext) Redirect(path string, status ...int) error {
	m.RedirectPath = path
	if len(status) > 0 {
		m.RedirectStatus = status[0]
	}
	return nil
}

func (m *MockContext) Status(code int) router.Context {
	m.StatusCode = code
	return m
}

func (m *MockContext) SendString(s string) error {
	m.SentBody = s
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
