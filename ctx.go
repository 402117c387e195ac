package session

import (
	"context"

	"github.com/goliatone/go-router"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the Session in the given context
func WithContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

// FromContext finds the Session in the context.
func FromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok
}

// FromRouter extracts the Session a guard stored in the router context
func FromRouter(c router.Context, key string) (*Session, bool) {
	if key == "" {
		key = "session"
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	sess, ok := raw.(*Session)
	return sess, ok
}

// Can is a convenience capability check directly from the standard context.
func Can(ctx context.Context, capability string) bool {
	sess, ok := FromContext(ctx)
	if !ok {
		return false
	}

	switch capability {
	case "authenticated":
		return sess.IsAuthenticated()
	case "admin":
		return sess.IsAdmin()
	case "premium":
		return sess.IsPremium()
	default:
		return false
	}
}
