package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Store holds the persisted bearer credential. Absence is a valid result,
// not an error, and Clear is idempotent.
type Store interface {
	Get() (string, bool)
	Set(token string) error
	Clear() error
}

// IdentityProvider runs the third-party interactive sign-in flow and returns
// a short-lived identity proof. The proof is never used as the app session
// credential; it must be exchanged against the API first.
type IdentityProvider interface {
	Name() string
	IdentityProof(ctx context.Context) (string, error)
}

// Config holds session options
type Config interface {
	GetBaseURL() string
	GetHTTPTimeout() int
	GetLoginRoute() string
	GetHomeRoute() string
	GetPendingView() string
	GetRejectedRouteKey() string
	GetContextKey() string
}

// AccountSource is the slice of the API client the Manager needs: boot-time
// validation and the login family.
type AccountSource interface {
	Register(ctx context.Context, payload RegisterPayload) (*AuthResult, error)
	Login(ctx context.Context, payload LoginPayload) (*AuthResult, error)
	ExchangeIdentityProof(ctx context.Context, proof string) (*AuthResult, error)
	FetchProfile(ctx context.Context) (*Session, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
