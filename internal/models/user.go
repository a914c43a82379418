package models

type UserRole string

const (
	RoleMember UserRole = "member"
	RoleAdmin  UserRole = "admin"
)

type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	PasswordHash string   `json:"-"`
	IsActive     bool     `json:"is_active"`
	Role         UserRole `json:"role"`
	Groups       []string `json:"groups,omitempty"`
}

// Anonymous reports whether the user is unauthenticated. Anonymous users are
// treated as opted out of every alert.
func (u User) Anonymous() bool {
	return u.ID == ""
}

func IsValidRole(role UserRole) bool {
	return role == RoleMember || role == RoleAdmin
}

// HasAtLeast reports whether role grants the permissions of required.
// Admins satisfy every requirement.
func HasAtLeast(role, required UserRole) bool {
	if role == RoleAdmin {
		return true
	}
	return role == required
}
