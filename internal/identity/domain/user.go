package domain

import "time"

type User struct {
	ID            string
	Name          string
	Email         string // stored lowercase, unique
	PasswordHash  string // argon2 encoded
	RoleID        string // empty when the role was deleted out from under the user
	EmailVerified bool
	Active        bool
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
