package session

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RouteGuard gates rendering on the Manager's Snapshot. Guards compose:
// RequireAuth wraps RequireAdmin so an anonymous visitor is sent to login
// while an under-privileged one is sent home.
type RouteGuard struct {
	sessions       *Manager
	cfg            Config
	Logger         Logger
	PendingHandler func(c router.Context) error
	ErrorHandler   func(c router.Context, err error) error
}

func NewRouteGuard(sessions *Manager, cfg Config) *RouteGuard {
	g := &RouteGuard{
		sessions: sessions,
		cfg:      cfg,
		Logger:   defLogger{},
	}

	g.PendingHandler = g.defaultPendingHandler
	g.ErrorHandler = g.defaultErrHandler

	return g
}

// RequireAuth renders the pending view while boot validation is in flight,
// redirects anonymous visitors to the login route remembering the original
// location, and otherwise injects the Session and runs the handler.
func (g *RouteGuard) RequireAuth() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			snap := g.sessions.Current()

			// Redirecting before boot resolves is the boot race; hold the
			// line with the pending view instead.
			if snap.Loading {
				return g.PendingHandler(c)
			}

			if !snap.Session.IsAuthenticated() {
				g.SetRedirect(c)
				return c.Redirect(g.cfg.GetLoginRoute(), g.redirectStatus(c))
			}

			g.inject(c, snap.Session)

			if err := next(c); err != nil {
				return g.ErrorHandler(c, err)
			}
			return nil
		}
	}
}

// RequireAdmin is the admin decision point. An authenticated but
// under-privileged principal is redirected home, not to login, with a
// visible notice; denial is never silent.
func (g *RouteGuard) RequireAdmin() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			snap := g.sessions.Current()

			if snap.Loading {
				return g.PendingHandler(c)
			}

			if !snap.Session.IsAuthenticated() {
				g.SetRedirect(c)
				return c.Redirect(g.cfg.GetLoginRoute(), g.redirectStatus(c))
			}

			if !snap.Session.IsAdmin() {
				g.Logger.Info(
					"admin route %s rejected for principal %s",
					c.OriginalURL(),
					snap.Session.PrincipalID,
				)
				return flash.WithError(c, router.ViewContext{
					"error_message":  "You do not have administrative access.",
					"system_message": ErrInsufficientRole.Message,
				}).Redirect(g.cfg.GetHomeRoute(), g.redirectStatus(c))
			}

			g.inject(c, snap.Session)

			if err := next(c); err != nil {
				return g.ErrorHandler(c, err)
			}
			return nil
		}
	}
}

// GetRedirect consumes the remembered location, falling back to def.
func (g *RouteGuard) GetRedirect(c router.Context, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		if len(def) == 0 {
			return g.cfg.GetHomeRoute()
		}
		return def[0]
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

// GetRedirectOrDefault consumes the remembered location, falling back to the
// referer and then to the home route.
func (g *RouteGuard) GetRedirectOrDefault(c router.Context) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	refererHeader := string(c.Referer())

	r := c.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.GetHomeRoute()
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

// SetRedirect remembers the originally requested location so login can
// resume there.
func (g *RouteGuard) SetRedirect(c router.Context) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	g.Logger.Debug("setting redirect cookie %s=%s", rejectedRoute, c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) inject(c router.Context, sess Session) {
	c.Locals(g.cfg.GetContextKey(), &sess)
	c.SetContext(WithContext(c.Context(), &sess))
}

func (g *RouteGuard) redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func (g *RouteGuard) defaultPendingHandler(c router.Context) error {
	return c.Render(g.cfg.GetPendingView(), router.ViewContext{
		"pending": true,
	})
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info(
		"guarded handler error [%s]: %s %s",
		richErr.Category,
		richErr.Message,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	// A credential the API stopped honoring mid-session clears state and
	// restarts the login flow.
	if IsUnauthorized(err) {
		g.sessions.Invalidate()
		g.SetRedirect(c)
		return c.Redirect(g.cfg.GetLoginRoute(), g.redirectStatus(c))
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return flash.WithError(c, router.ViewContext{
			"error_message": richErr.Message,
		}).Redirect(g.cfg.GetHomeRoute(), g.redirectStatus(c))
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
