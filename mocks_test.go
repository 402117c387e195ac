package session_test

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	session "github.com/newsportal/go-session"
)

// stubSource implements session.AccountSource with injectable behavior and
// call counters.
type stubSource struct {
	registerFn func(ctx context.Context, payload session.RegisterPayload) (*session.AuthResult, error)
	loginFn    func(ctx context.Context, payload session.LoginPayload) (*session.AuthResult, error)
	exchangeFn func(ctx context.Context, proof string) (*session.AuthResult, error)
	profileFn  func(ctx context.Context) (*session.Session, error)

	registerCalls int
	loginCalls    int
	exchangeCalls int
	profileCalls  int
}

func (s *stubSource) Register(ctx context.Context, payload session.RegisterPayload) (*session.AuthResult, error) {
	s.registerCalls++
	return s.registerFn(ctx, payload)
}

func (s *stubSource) Login(ctx context.Context, payload session.LoginPayload) (*session.AuthResult, error) {
	s.loginCalls++
	return s.loginFn(ctx, payload)
}

func (s *stubSource) ExchangeIdentityProof(ctx context.Context, proof string) (*session.AuthResult, error) {
	s.exchangeCalls++
	return s.exchangeFn(ctx, proof)
}

func (s *stubSource) FetchProfile(ctx context.Context) (*session.Session, error) {
	s.profileCalls++
	return s.profileFn(ctx)
}

// recordingLogger implements session.Logger and keeps the rendered lines so
// tests can assert on what a real sink would receive.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debug(format string, args ...any) { l.record(format, args...) }
func (l *recordingLogger) Info(format string, args ...any)  { l.record(format, args...) }
func (l *recordingLogger) Warn(format string, args ...any)  { l.record(format, args...) }
func (l *recordingLogger) Error(format string, args ...any) { l.record(format, args...) }

func (l *recordingLogger) record(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

// stubProvider implements session.IdentityProvider.
type stubProvider struct {
	proof string
	err   error
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) IdentityProof(ctx context.Context) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.proof, nil
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
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

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
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

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
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
