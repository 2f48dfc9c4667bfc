package domain

import "time"

// System role names created at seed time. They cannot be renamed or
// deleted through the management API.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type Role struct {
	ID          string
	Name        string
	Description string
	System      bool // seeded roles are protected from modification
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSystem reports whether the role is one of the protected seed roles.
func (r Role) IsSystem() bool {
	return r.System || r.Name == RoleAdmin || r.Name == RoleUser
}

type Privilege struct {
	ID          string
	Name        string // uppercase
	Description string
	Module      string // uppercase grouping, e.g. USERS, ROLES
	Active      bool   // inactive privileges grant nothing
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
