package session

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidCredentials = "session_invalid_credentials"
	TextCodePolicyViolation    = "session_password_policy"
	TextCodeExpired            = "session_expired"
	TextCodeFlowCancelled      = "session_flow_cancelled"
	TextCodeExchangeFailed     = "session_exchange_failed"
	TextCodeInsufficientRole   = "session_insufficient_role"
	TextCodeAnonymous          = "session_anonymous"
)

// ErrInvalidCredentials is returned when the API rejects a login attempt.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrSessionExpired is returned when the API signals the persisted token is
// no longer valid.
var ErrSessionExpired = errors.New("session expired", errors.CategoryAuth).
	WithTextCode(TextCodeExpired).
	WithCode(errors.CodeUnauthorized)

// ErrFlowCancelled is the distinct outcome of a user-cancelled federated
// sign-in. Callers stay silent on it instead of surfacing an error notice.
var ErrFlowCancelled = errors.New("sign-in flow cancelled", errors.CategoryOperation).
	WithTextCode(TextCodeFlowCancelled).
	WithCode(errors.CodeBadRequest)

// ErrExchangeFailed is returned when a provider identity proof cannot be
// exchanged for an app-issued token.
var ErrExchangeFailed = errors.New("identity proof exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrInsufficientRole is returned when an authenticated principal lacks the
// role a guard requires.
var ErrInsufficientRole = errors.New("insufficient privileges", errors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(errors.CodeForbidden)

// ErrAnonymousSession is returned when an operation needs a signed-in
// principal and the Session is anonymous.
var ErrAnonymousSession = errors.New("no authenticated session", errors.CategoryAuth).
	WithTextCode(TextCodeAnonymous).
	WithCode(errors.CodeUnauthorized)

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsFlowCancelled reports whether err is the cancelled federated flow
// outcome.
func IsFlowCancelled(err error) bool {
	return hasTextCode(err, TextCodeFlowCancelled)
}

// IsPolicyViolation reports whether err is a local password policy failure.
func IsPolicyViolation(err error) bool {
	return hasTextCode(err, TextCodePolicyViolation)
}

// IsUnauthorized reports whether err carries an authentication failure, i.e.
// the API refused the credential rather than the request content.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryAuth && richErr.Code == errors.CodeUnauthorized
}
