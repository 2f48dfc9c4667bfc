package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

// UserAdminService is the administrative view over accounts: listing,
// role reassignment, and deletion. Self-service operations live on
// AccountService.
type UserAdminService struct {
	Store  store.Store
	Tokens *TokenService
}

func (s *UserAdminService) List(ctx context.Context, search string, limit, offset int) ([]domain.User, int, error) {
	return s.Store.Users().ListUsers(ctx, strings.TrimSpace(search), normalizeLimit(limit), max(offset, 0))
}

func (s *UserAdminService) Get(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// AssignRole moves a user to another role. The change applies to newly
// issued access tokens; outstanding ones carry the old role until expiry,
// which the short access TTL bounds.
func (s *UserAdminService) AssignRole(ctx context.Context, userID, roleID string) (domain.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return domain.User{}, err
	}

	if _, err := s.Store.Roles().GetRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrRoleNotFound
		}
		return domain.User{}, err
	}

	if err := s.Store.Users().UpdateUserRole(ctx, userID, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return s.Get(ctx, userID)
}

// SetActive enables or disables an account. Disabling also revokes every
// refresh token so the account cannot keep a session alive past the access
// token TTL.
func (s *UserAdminService) SetActive(ctx context.Context, userID string, active bool) (domain.User, error) {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetUserActive(ctx, userID, active); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if !active {
			return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return s.Get(ctx, userID)
}

// Delete removes an account and revokes its sessions. Refresh tokens and
// reset records cascade away at the storage layer; the explicit revoke
// before the delete keeps the ordering obvious if cascades ever change.
func (s *UserAdminService) Delete(ctx context.Context, userID string) error {
	log := slogx.FromContext(ctx)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID); err != nil {
			return err
		}
		if err := tx.Users().DeleteUser(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("user deleted", "user_id", userID)
	return nil
}
