package session_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	session "github.com/newsportal/go-session"
)

func guardFixture(t *testing.T, profile *session.Session) (*session.RouteGuard, *session.Manager) {
	t.Helper()

	source := &stubSource{
		profileFn: func(ctx context.Context) (*session.Session, error) {
			return profile, nil
		},
	}

	store := session.NewMemoryStore()
	if profile != nil {
		require.NoError(t, store.Set("opaque-token"))
	}

	manager := session.NewManager(source, store)
	require.NoError(t, manager.Boot(context.Background()))

	return session.NewRouteGuard(manager, &session.ConfigObject{}), manager
}

func runGuard(guard router.MiddlewareFunc, c router.Context) (bool, error) {
	nextCalled := false
	err := guard(func(c router.Context) error {
		nextCalled = true
		return nil
	})(c)
	return nextCalled, err
}

func TestRequireAuthRendersPendingDuringBoot(t *testing.T) {
	manager := session.NewManager(&stubSource{}, session.NewMemoryStore())
	guard := session.NewRouteGuard(manager, &session.ConfigObject{})

	mockCtx := new(MockContext)
	mockCtx.On("Render", "shared/pending", mock.Anything).Return(nil)

	nextCalled, err := runGuard(guard.RequireAuth(), mockCtx)

	require.NoError(t, err)
	assert.False(t, nextCalled, "handlers must not run before boot settles")
	mockCtx.AssertExpectations(t)
}

func TestRequireAuthCustomPendingHandler(t *testing.T) {
	manager := session.NewManager(&stubSource{}, session.NewMemoryStore())
	guard := session.NewRouteGuard(manager, &session.ConfigObject{})

	pendingCalled := false
	guard.PendingHandler = func(c router.Context) error {
		pendingCalled = true
		return nil
	}

	mockCtx := new(MockContext)

	nextCalled, err := runGuard(guard.RequireAuth(), mockCtx)

	require.NoError(t, err)
	assert.True(t, pendingCalled)
	assert.False(t, nextCalled)
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	guard, _ := guardFixture(t, nil)

	mockCtx := new(MockContext)
	mockCtx.On("OriginalURL").Return("/dashboard")
	mockCtx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "rejected_route" && c.Value == "/dashboard" && c.HTTPOnly
	})).Return()
	mockCtx.On("Method").Return("GET")
	mockCtx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	nextCalled, err := runGuard(guard.RequireAuth(), mockCtx)

	require.NoError(t, err)
	assert.False(t, nextCalled)
	mockCtx.AssertExpectations(t)
}

func TestRequireAuthRedirectStatusForUnsafeMethods(t *testing.T) {
	guard, _ := guardFixture(t, nil)

	mockCtx := new(MockContext)
	mockCtx.On("OriginalURL").Return("/dashboard")
	mockCtx.On("Cookie", mock.Anything).Return()
	mockCtx.On("Method").Return("POST")
	mockCtx.On("Redirect", "/login", []int{http.StatusSeeOther}).Return(nil)

	nextCalled, err := runGuard(guard.RequireAuth(), mockCtx)

	require.NoError(t, err)
	assert.False(t, nextCalled)
	mockCtx.AssertExpectations(t)
}

func TestRequireAuthInjectsSession(t *testing.T) {
	guard, _ := guardFixture(t, &session.Session{
		PrincipalID: "user-1",
		Role:        session.RoleNormal,
	})

	mockCtx := new(MockContext)
	mockCtx.On("Locals", "session", mock.MatchedBy(func(s *session.Session) bool {
		return s.PrincipalID == "user-1"
	})).Return(nil)
	mockCtx.On("Context").Return(context.Background())
	mockCtx.On("SetContext", mock.MatchedBy(func(ctx context.Context) bool {
		sess, ok := session.FromContext(ctx)
		return ok && sess.PrincipalID == "user-1"
	})).Return()

	nextCalled, err := runGuard(guard.RequireAuth(), mockCtx)

	require.NoError(t, err)
	assert.True(t, nextCalled)
	mockCtx.AssertExpectations(t)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	guard, _ := guardFixture(t, &session.Session{
		PrincipalID: "admin-1",
		Role:        session.RoleAdmin,
	})

	mockCtx := new(MockContext)
	mockCtx.On("Locals", "session", mock.Anything).Return(nil)
	mockCtx.On("Context").Return(context.Background())
	mockCtx.On("SetContext", mock.Anything).Return()

	nextCalled, err := runGuard(guard.RequireAdmin(), mockCtx)

	require.NoError(t, err)
	assert.True(t, nextCalled)
	mockCtx.AssertExpectations(t)
}

func TestRequireAdminRedirectsAnonymousToLogin(t *testing.T) {
	guard, _ := guardFixture(t, nil)

	mockCtx := new(MockContext)
	mockCtx.On("OriginalURL").Return("/admin")
	mockCtx.On("Cookie", mock.Anything).Return()
	mockCtx.On("Method").Return("GET")
	mockCtx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	nextCalled, err := runGuard(guard.RequireAdmin(), mockCtx)

	require.NoError(t, err)
	assert.False(t, nextCalled)
	mockCtx.AssertExpectations(t)
}

func TestRequireAdminRedirectsNormalUserHome(t *testing.T) {
	guard, _ := guardFixture(t, &session.Session{
		PrincipalID: "user-1",
		Role:        session.RoleNormal,
	})

	mockCtx := new(MockContext)
	mockCtx.On("OriginalURL").Return("/admin")
	mockCtx.On("Cookie", mock.Anything).Return()
	mockCtx.On("Cookies", mock.Anything).Return("")
	mockCtx.On("Cookies", mock.Anything, mock.Anything).Return("")
	mockCtx.On("Method").Return("GET")
	mockCtx.On("Redirect", "/", []int{http.StatusFound}).Return(nil)

	nextCalled, err := runGuard(guard.RequireAdmin(), mockCtx)

	require.NoError(t, err)
	assert.False(t, nextCalled, "an under-privileged principal is sent home, not to login")
}

func TestGuardErrorHandlerInvalidatesOnUnauthorized(t *testing.T) {
	guard, manager := guardFixture(t, &session.Session{
		PrincipalID: "user-1",
		Role:        session.RoleNormal,
	})

	mockCtx := new(MockContext)
	mockCtx.On("Locals", "session", mock.Anything).Return(nil)
	mockCtx.On("Context").Return(context.Background())
	mockCtx.On("SetContext", mock.Anything).Return()
	mockCtx.On("OriginalURL").Return("/articles/submit")
	mockCtx.On("Cookie", mock.Anything).Return()
	mockCtx.On("Method").Return("GET")
	mockCtx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	err := guard.RequireAuth()(func(c router.Context) error {
		// the API stopped honoring the credential mid-session
		return unauthorizedErr("Token is not valid.")
	})(mockCtx)

	require.NoError(t, err)
	assert.False(t, manager.IsAuthenticated(), "a mid-session 401 must clear the Session")
	mockCtx.AssertExpectations(t)
}

func TestGuardErrorHandlerCustomOverride(t *testing.T) {
	guard, _ := guardFixture(t, &session.Session{
		PrincipalID: "user-1",
		Role:        session.RoleNormal,
	})

	var handledErr error
	guard.ErrorHandler = func(c router.Context, err error) error {
		handledErr = err
		return nil
	}

	mockCtx := new(MockContext)
	mockCtx.On("Locals", "session", mock.Anything).Return(nil)
	mockCtx.On("Context").Return(context.Background())
	mockCtx.On("SetContext", mock.Anything).Return()

	err := guard.RequireAuth()(func(c router.Context) error {
		return assert.AnError
	})(mockCtx)

	require.NoError(t, err)
	assert.Equal(t, assert.AnError, handledErr)
}

func TestGuardRedirectMemory(t *testing.T) {
	guard, _ := guardFixture(t, nil)

	t.Run("SetRedirect", func(t *testing.T) {
		mockCtx := new(MockContext)

		mockCtx.On("OriginalURL").Return("/dashboard")
		mockCtx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
			return c.Name == "rejected_route" && c.Value == "/dashboard" && c.HTTPOnly
		})).Return()

		guard.SetRedirect(mockCtx)

		mockCtx.AssertExpectations(t)
	})

	t.Run("GetRedirect", func(t *testing.T) {
		mockCtx := new(MockContext)

		mockCtx.On("Cookies", "rejected_route").Return("/dashboard")
		mockCtx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
			return c.Name == "rejected_route" && c.Value == "" && c.Expires.Before(time.Now())
		})).Return()

		redirect := guard.GetRedirect(mockCtx, "/home")
		assert.Equal(t, "/dashboard", redirect)

		mockCtx.AssertExpectations(t)
	})

	t.Run("GetRedirect falls back to default", func(t *testing.T) {
		mockCtx := new(MockContext)

		mockCtx.On("Cookies", "rejected_route").Return("")

		redirect := guard.GetRedirect(mockCtx, "/home")
		assert.Equal(t, "/home", redirect)

		mockCtx.AssertExpectations(t)
	})

	t.Run("GetRedirect without default falls back to home", func(t *testing.T) {
		mockCtx := new(MockContext)

		mockCtx.On("Cookies", "rejected_route").Return("")

		redirect := guard.GetRedirect(mockCtx)
		assert.Equal(t, "/", redirect)

		mockCtx.AssertExpectations(t)
	})

	t.Run("GetRedirectOrDefault", func(t *testing.T) {
		mockCtx := new(MockContext)

		mockCtx.On("Referer").Return("")
		mockCtx.On("Cookies", "rejected_route", "").Return("")
		mockCtx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
			return c.Name == "rejected_route" && c.Value == ""
		})).Return()

		redirect := guard.GetRedirectOrDefault(mockCtx)
		assert.Equal(t, "/", redirect)

		mockCtx.AssertExpectations(t)
	})
}
