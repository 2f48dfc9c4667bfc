package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedRole(t *testing.T, s *Store, name string) domain.Role {
	t.Helper()

	role := domain.Role{ID: idx.New().String(), Name: name}
	require.NoError(t, s.Roles().CreateRole(context.Background(), role))
	return role
}

func seedUser(t *testing.T, s *Store, email, roleID string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$argon2id$fake",
		RoleID:       roleID,
		Active:       true,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestUsersRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	role := seedRole(t, s, "USER")

	t.Run("create and fetch", func(t *testing.T) {
		u := seedUser(t, s, "alice@example.com", role.ID)

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)
		require.False(t, got.EmailVerified)
		require.True(t, got.Active)
		require.Nil(t, got.LastLogin)

		got, err = s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("email lookup is case insensitive", func(t *testing.T) {
		got, err := s.Users().GetUserByEmail(ctx, "ALICE@Example.COM")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("duplicate email rejected regardless of case", func(t *testing.T) {
		dup := domain.User{
			ID:           idx.New().String(),
			Email:        "Alice@Example.com",
			PasswordHash: "x",
			RoleID:       role.ID,
		}
		err := s.Users().CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("mark verified is idempotent", func(t *testing.T) {
		u, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID))
		require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.EmailVerified)
	})

	t.Run("update profile", func(t *testing.T) {
		u, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		require.NoError(t, s.Users().UpdateProfile(ctx, u.ID, "Alice B", "alice.b@example.com"))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "Alice B", got.Name)
		require.Equal(t, "alice.b@example.com", got.Email)

		// and back, so the later subtests keep their fixture
		require.NoError(t, s.Users().UpdateProfile(ctx, u.ID, "Test User", "alice@example.com"))
	})

	t.Run("deactivate and reactivate", func(t *testing.T) {
		u, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		require.NoError(t, s.Users().SetUserActive(ctx, u.ID, false))
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.Active)

		require.NoError(t, s.Users().SetUserActive(ctx, u.ID, true))
	})

	t.Run("last login recorded", func(t *testing.T) {
		u, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.Users().UpdateLastLogin(ctx, u.ID, at))

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLogin)
		require.WithinDuration(t, at, *got.LastLogin, time.Second)
	})

	t.Run("unknown user is ErrNotFound", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)

		err = s.Users().UpdateProfile(ctx, "nope", "A", "b@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		err = s.Users().SetUserActive(ctx, "nope", false)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list with pagination and search", func(t *testing.T) {
		seedUser(t, s, "bob@example.com", role.ID)
		seedUser(t, s, "carol@example.com", role.ID)

		users, total, err := s.Users().ListUsers(ctx, "", 2, 0)
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Len(t, users, 2)

		users, total, err = s.Users().ListUsers(ctx, "carol", 10, 0)
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, users, 1)
		require.Equal(t, "carol@example.com", users[0].Email)

		count, err := s.Users().CountByRole(ctx, role.ID)
		require.NoError(t, err)
		require.Equal(t, 3, count)
	})
}

func TestRolesRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	admin := seedRole(t, s, "ADMIN")

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := s.Roles().CreateRole(ctx, domain.Role{ID: idx.New().String(), Name: "ADMIN"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("grant is idempotent and listed", func(t *testing.T) {
		p := domain.Privilege{ID: idx.New().String(), Name: "USERS_READ", Module: "USERS", Active: true}
		require.NoError(t, s.Privileges().CreatePrivilege(ctx, p))

		require.NoError(t, s.Roles().GrantPrivilege(ctx, admin.ID, p.ID))
		require.NoError(t, s.Roles().GrantPrivilege(ctx, admin.ID, p.ID))

		privs, err := s.Roles().ListRolePrivileges(ctx, admin.ID)
		require.NoError(t, err)
		require.Len(t, privs, 1)
		require.Equal(t, "USERS_READ", privs[0].Name)
		require.Equal(t, "USERS", privs[0].Module)
		require.True(t, privs[0].Active)
	})

	t.Run("revoke removes the grant", func(t *testing.T) {
		p, err := s.Privileges().GetPrivilegeByName(ctx, "USERS_READ")
		require.NoError(t, err)

		require.NoError(t, s.Roles().RevokePrivilege(ctx, admin.ID, p.ID))
		privs, err := s.Roles().ListRolePrivileges(ctx, admin.ID)
		require.NoError(t, err)
		require.Empty(t, privs)
	})
}

func TestPrivilegesRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mkPriv := func(name, module string) domain.Privilege {
		p := domain.Privilege{ID: idx.New().String(), Name: name, Module: module, Active: true}
		require.NoError(t, s.Privileges().CreatePrivilege(ctx, p))
		return p
	}

	mkPriv("USERS_READ", "USERS")
	mkPriv("USERS_WRITE", "USERS")
	reports := mkPriv("REPORTS_READ", "REPORTS")

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := s.Privileges().CreatePrivilege(ctx, domain.Privilege{ID: idx.New().String(), Name: "USERS_READ", Module: "USERS"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("list filters by module and search", func(t *testing.T) {
		privs, total, err := s.Privileges().ListPrivileges(ctx, store.PrivilegeFilter{Module: "USERS", Limit: 10})
		require.NoError(t, err)
		require.Equal(t, 2, total)
		require.Len(t, privs, 2)

		privs, total, err = s.Privileges().ListPrivileges(ctx, store.PrivilegeFilter{Search: "REPORTS", Limit: 10})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Equal(t, "REPORTS_READ", privs[0].Name)
	})

	t.Run("toggle active", func(t *testing.T) {
		require.NoError(t, s.Privileges().SetPrivilegeActive(ctx, reports.ID, false))

		got, err := s.Privileges().GetPrivilegeByID(ctx, reports.ID)
		require.NoError(t, err)
		require.False(t, got.Active)

		require.ErrorIs(t, s.Privileges().SetPrivilegeActive(ctx, "nope", false), store.ErrNotFound)
	})
}

func TestRefreshTokensRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	role := seedRole(t, s, "USER")
	u := seedUser(t, s, "dave@example.com", role.ID)

	mkToken := func(hash string, expiresAt time.Time) domain.RefreshToken {
		return domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    u.ID,
			TokenHash: hash,
			ExpiresAt: expiresAt,
		}
	}

	t.Run("consume succeeds once", func(t *testing.T) {
		rt := mkToken("hash-1", time.Now().Add(time.Hour))
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

		require.NoError(t, s.RefreshTokens().ConsumeRefreshToken(ctx, "hash-1"))
		err := s.RefreshTokens().ConsumeRefreshToken(ctx, "hash-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		rt := mkToken("hash-2", time.Now().Add(time.Hour))
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, "hash-2"))
		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, "hash-2"))
		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, "never-existed"))
	})

	t.Run("revoke all for user", func(t *testing.T) {
		rt := mkToken("hash-3", time.Now().Add(time.Hour))
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

		require.NoError(t, s.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID))

		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-3")
		require.NoError(t, err)
		require.True(t, got.Revoked)
	})

	t.Run("expired cleanup", func(t *testing.T) {
		rt := mkToken("hash-4", time.Now().Add(-time.Hour))
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

		n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, time.Now())
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-4")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPasswordResetsRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	role := seedRole(t, s, "USER")
	u := seedUser(t, s, "erin@example.com", role.ID)

	mkReset := func(hash string, expiresAt time.Time) domain.PasswordReset {
		return domain.PasswordReset{
			ID:        idx.New().String(),
			UserID:    u.ID,
			TokenHash: hash,
			ExpiresAt: expiresAt,
		}
	}

	t.Run("active lookup honors used and expiry", func(t *testing.T) {
		require.NoError(t, s.PasswordResets().CreatePasswordReset(ctx, mkReset("r-1", time.Now().Add(time.Hour))))

		got, err := s.PasswordResets().GetActivePasswordResetByHash(ctx, "r-1", time.Now())
		require.NoError(t, err)

		require.NoError(t, s.PasswordResets().MarkPasswordResetUsed(ctx, got.ID))
		_, err = s.PasswordResets().GetActivePasswordResetByHash(ctx, "r-1", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)

		// used twice loses
		err = s.PasswordResets().MarkPasswordResetUsed(ctx, got.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invalidate all unused resets", func(t *testing.T) {
		require.NoError(t, s.PasswordResets().CreatePasswordReset(ctx, mkReset("r-2", time.Now().Add(time.Hour))))
		require.NoError(t, s.PasswordResets().CreatePasswordReset(ctx, mkReset("r-3", time.Now().Add(time.Hour))))

		require.NoError(t, s.PasswordResets().InvalidateUserPasswordResets(ctx, u.ID))

		_, err := s.PasswordResets().GetActivePasswordResetByHash(ctx, "r-2", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.PasswordResets().GetActivePasswordResetByHash(ctx, "r-3", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("transaction rollback discards writes", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.PasswordResets().CreatePasswordReset(ctx, mkReset("r-4", time.Now().Add(time.Hour))); err != nil {
				return err
			}
			return context.Canceled // force rollback
		})
		require.Error(t, err)

		_, err = s.PasswordResets().GetActivePasswordResetByHash(ctx, "r-4", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
