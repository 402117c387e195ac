package session

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NoticeCookie carries a one-shot user-visible notice across the denial
// redirect, the fiber-native analog of the flash the go-router guard sets.
// Hosts read and clear it on the next render.
const NoticeCookie = "flash_error"

// CurrentSession extracts the Session a guard stored in the fiber locals.
func CurrentSession(c *fiber.Ctx, key string) (*Session, error) {
	if key == "" {
		key = "session"
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrAnonymousSession
	}

	sess, ok := raw.(*Session)
	if !ok {
		return nil, ErrAnonymousSession
	}

	return sess, nil
}

// RequireAuthFiber is the fiber-native variant of RouteGuard.RequireAuth for
// hosts that mount fiber handlers directly.
func RequireAuthFiber(sessions *Manager, cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := sessions.Current()

		if snap.Loading {
			return c.Render(cfg.GetPendingView(), fiber.Map{"pending": true})
		}

		if !snap.Session.IsAuthenticated() {
			setRejectedRouteFiber(c, cfg)
			return c.Redirect(cfg.GetLoginRoute(), redirectStatusFiber(c))
		}

		sess := snap.Session
		c.Locals(cfg.GetContextKey(), &sess)
		c.SetUserContext(WithContext(c.UserContext(), &sess))
		return c.Next()
	}
}

// RequireAdminFiber is the fiber-native variant of RouteGuard.RequireAdmin.
func RequireAdminFiber(sessions *Manager, cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := sessions.Current()

		if snap.Loading {
			return c.Render(cfg.GetPendingView(), fiber.Map{"pending": true})
		}

		if !snap.Session.IsAuthenticated() {
			setRejectedRouteFiber(c, cfg)
			return c.Redirect(cfg.GetLoginRoute(), redirectStatusFiber(c))
		}

		// denial is never silent: carry a visible notice across the redirect
		if !snap.Session.IsAdmin() {
			setNoticeFiber(c, "You do not have administrative access.")
			return c.Redirect(cfg.GetHomeRoute(), redirectStatusFiber(c))
		}

		sess := snap.Session
		c.Locals(cfg.GetContextKey(), &sess)
		c.SetUserContext(WithContext(c.UserContext(), &sess))
		return c.Next()
	}
}

func setNoticeFiber(c *fiber.Ctx, message string) {
	c.Cookie(&fiber.Cookie{
		Name:     NoticeCookie,
		Value:    url.QueryEscape(message),
		Expires:  time.Now().Add(time.Minute),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func setRejectedRouteFiber(c *fiber.Ctx, cfg Config) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetRejectedRouteKey(),
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func redirectStatusFiber(c *fiber.Ctx) int {
	if c.Method() == fiber.MethodGet {
		return fiber.StatusFound
	}
	return fiber.StatusSeeOther
}
