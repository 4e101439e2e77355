package auth

import "fmt"

// Role is the closed set of account roles the backend issues.
type Role string

const (
	RoleStudent      Role = "student"
	RoleCompanyAdmin Role = "company_admin"
	RoleFacultyAdmin Role = "faculty_admin"
)

// ParseRole validates a role string from a token or profile.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleCompanyAdmin, RoleFacultyAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Admin reports whether the role may use the admin query surface.
func (r Role) Admin() bool {
	return r == RoleCompanyAdmin || r == RoleFacultyAdmin
}

// Allowed is the authorization decision: with no required roles every
// authenticated role passes, otherwise the role must be listed.
func Allowed(role Role, required ...Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		if role == want {
			return true
		}
	}
	return false
}
