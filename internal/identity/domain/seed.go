package domain

// SeedData describes what the service provisions on first boot: the
// protected system roles, their baseline privileges, and optionally an
// initial administrator account.
type SeedData struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
	Roles         []RoleDefinition
}

type RoleDefinition struct {
	Name        string
	Description string
	Privileges  []PrivilegeDefinition
}

type PrivilegeDefinition struct {
	Name   string
	Module string
}

// DefaultSeedRoles are provisioned on every boot if missing.
func DefaultSeedRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RoleAdmin,
			Description: "Full administrative access",
			Privileges: []PrivilegeDefinition{
				{Name: "USERS_READ", Module: "USERS"},
				{Name: "USERS_WRITE", Module: "USERS"},
				{Name: "USERS_DELETE", Module: "USERS"},
				{Name: "ROLES_READ", Module: "ROLES"},
				{Name: "ROLES_WRITE", Module: "ROLES"},
				{Name: "ROLES_DELETE", Module: "ROLES"},
				{Name: "PRIVILEGES_READ", Module: "PRIVILEGES"},
				{Name: "PRIVILEGES_WRITE", Module: "PRIVILEGES"},
				{Name: "PRIVILEGES_DELETE", Module: "PRIVILEGES"},
			},
		},
		{
			Name:        RoleUser,
			Description: "Standard account access",
			Privileges: []PrivilegeDefinition{
				{Name: "PROFILE_READ", Module: "PROFILE"},
				{Name: "PROFILE_WRITE", Module: "PROFILE"},
			},
		},
	}
}
