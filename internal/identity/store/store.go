package store

import (
	"context"
	"errors"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a Tx-scoped variant so multi-step operations cannot
// accidentally nest transactions.
type Store interface {
	Users() Users
	Roles() Roles
	Privileges() Privileges
	RefreshTokens() RefreshTokens
	PasswordResets() PasswordResets

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and rolling
	// back on error. This is the recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up the normalized (lowercased) address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile mutates name and email and bumps updated_at. Email is
	// stored lowercased; a duplicate maps to ErrAlreadyExists.
	UpdateProfile(ctx context.Context, userID, name, email string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkEmailVerified flips email_verified=1. Idempotent.
	MarkEmailVerified(ctx context.Context, userID string) error

	// UpdateUserRole reassigns the user to another role.
	UpdateUserRole(ctx context.Context, userID, roleID string) error

	// SetUserActive toggles the is_active flag.
	SetUserActive(ctx context.Context, userID string, active bool) error

	// UpdateLastLogin records a successful login timestamp.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error

	// DeleteUser cascades to refresh_tokens and password_resets (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns a page of users ordered by creation date (newest
	// first) plus the total count for pagination. A non-empty search matches
	// name or email substrings.
	ListUsers(ctx context.Context, search string, limit, offset int) ([]domain.User, int, error)

	// CountByRole returns how many users currently hold the role.
	CountByRole(ctx context.Context, roleID string) (int, error)

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)
	CreateRole(ctx context.Context, r domain.Role) error
	UpdateRole(ctx context.Context, roleID, name, description string) error
	DeleteRole(ctx context.Context, roleID string) error
	ListRoles(ctx context.Context, limit, offset int) ([]domain.Role, int, error)

	// GrantPrivilege attaches a privilege to a role. Granting twice is a no-op.
	GrantPrivilege(ctx context.Context, roleID, privilegeID string) error

	// RevokePrivilege detaches a privilege from a role.
	RevokePrivilege(ctx context.Context, roleID, privilegeID string) error

	// ListRolePrivileges returns the privileges attached to a role.
	ListRolePrivileges(ctx context.Context, roleID string) ([]domain.Privilege, error)
}

// PrivilegeFilter narrows ListPrivileges. Zero values mean "no filter".
type PrivilegeFilter struct {
	Search string // substring match on name
	Module string // exact module match (uppercase)
	Limit  int
	Offset int
}

type Privileges interface {
	GetPrivilegeByID(ctx context.Context, id string) (domain.Privilege, error)
	GetPrivilegeByName(ctx context.Context, name string) (domain.Privilege, error)
	CreatePrivilege(ctx context.Context, p domain.Privilege) error
	UpdatePrivilege(ctx context.Context, privilegeID, name, description, module string) error
	SetPrivilegeActive(ctx context.Context, privilegeID string, active bool) error
	DeletePrivilege(ctx context.Context, privilegeID string) error
	ListPrivileges(ctx context.Context, filter PrivilegeFilter) ([]domain.Privilege, int, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// ConsumeRefreshToken atomically flips revoked=1 only if the token is
	// still unrevoked, returning ErrNotFound when another caller got there
	// first. Rotation uses this to make replays lose the race.
	ConsumeRefreshToken(ctx context.Context, hash string) error

	// RevokeRefreshToken flips revoked=1, sets updated_at. Idempotent.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens bulk revocation for a user (password reset,
	// account deletion).
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is housekeeping; returns rows removed.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type PasswordResets interface {
	// CreatePasswordReset writes a new reset record.
	CreatePasswordReset(ctx context.Context, p domain.PasswordReset) error

	// GetActivePasswordResetByHash returns a not-used, not-expired reset.
	GetActivePasswordResetByHash(ctx context.Context, hash string, now time.Time) (domain.PasswordReset, error)

	// MarkPasswordResetUsed sets used=1 (transaction-friendly).
	MarkPasswordResetUsed(ctx context.Context, resetID string) error

	// InvalidateUserPasswordResets marks all of a user's unused resets used,
	// so only the most recently issued token redeems.
	InvalidateUserPasswordResets(ctx context.Context, userID string) error

	// DeleteExpiredPasswordResets is housekeeping; returns rows removed.
	DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error)
}
