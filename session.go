package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the in-memory record of the current principal. The zero value
// is the anonymous Session. The bearer credential itself lives in the Store,
// never here; the Manager keeps the two in step so the token is present if
// and only if PrincipalID is.
type Session struct {
	PrincipalID  string     `json:"id,omitempty"`
	DisplayName  string     `json:"displayName,omitempty"`
	AvatarURL    string     `json:"photoURL,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         UserRole   `json:"role,omitempty"`
	PremiumSince *time.Time `json:"premiumTaken,omitempty"`
}

// Anonymous returns the anonymous Session.
func Anonymous() Session {
	return Session{}
}

// IsAuthenticated derives whether a principal is signed in.
func (s Session) IsAuthenticated() bool {
	return s.PrincipalID != ""
}

// IsAdmin derives admin-area visibility. Implies IsAuthenticated.
func (s Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.Role == RoleAdmin
}

// IsPremium derives premium entitlement. The server owns expiry; a non-nil
// PremiumSince is the whole contract. Implies IsAuthenticated.
func (s Session) IsPremium() bool {
	return s.IsAuthenticated() && s.PremiumSince != nil
}

// PrincipalUUID parses the principal identifier as a UUID.
func (s Session) PrincipalUUID() (uuid.UUID, error) {
	return uuid.Parse(s.PrincipalID)
}

// Merge returns a copy of s with the fields the server returned applied on
// top. Server fields win; zero-valued patch fields are treated as
// unspecified and leave the existing value untouched. The role is
// re-parsed so an unknown wire value never grants anything locally.
func (s Session) Merge(patch Session) Session {
	out := s

	if patch.PrincipalID != "" {
		out.PrincipalID = patch.PrincipalID
	}
	if patch.DisplayName != "" {
		out.DisplayName = patch.DisplayName
	}
	if patch.AvatarURL != "" {
		out.AvatarURL = patch.AvatarURL
	}
	if patch.Email != "" {
		out.Email = patch.Email
	}
	if patch.Role != "" {
		role, _ := ParseRole(patch.Role)
		out.Role = role
	}
	if patch.PremiumSince != nil {
		t := *patch.PremiumSince
		out.PremiumSince = &t
	}

	return out
}

func (s Session) String() string {
	premium := "<nil>"
	if s.PremiumSince != nil {
		premium = s.PremiumSince.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"principal=%s email=%s role=%s premium_since=%s",
		s.PrincipalID,
		s.Email,
		s.Role,
		premium,
	)
}
