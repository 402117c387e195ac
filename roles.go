package session

// UserRole is the principal's role as issued by the API
type UserRole = string

const (
	// RoleNormal is a registered reader (view, submit articles)
	RoleNormal UserRole = "normal"
	// RoleAdmin moderates content and manages publishers
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleNormal, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type. Unknown roles fall
// back to normal so a stale client never promotes anyone locally.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	if !IsValidRole(role) {
		return RoleNormal, false
	}
	return role, true
}
