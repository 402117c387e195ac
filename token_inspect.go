package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired reports whether the persisted credential is a JWT whose exp
// claim is already in the past. The token is never validated here; this only
// lets boot skip a round trip that is guaranteed to come back 401. Anything
// that does not decode as a JWT is treated as opaque and left for the server
// to judge.
func TokenExpired(raw string, now time.Time) bool {
	if raw == "" {
		return true
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return false
	}

	if claims.ExpiresAt == nil {
		return false
	}

	return claims.ExpiresAt.Time.Before(now)
}
