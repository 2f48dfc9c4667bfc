package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
)

var ErrForbidden = errors.New("forbidden")

// AuthorizeService answers "may this caller do that" questions. Privileges
// resolve through the database on every check, so granting or revoking a
// privilege takes effect without waiting for tokens to expire.
type AuthorizeService struct {
	Store store.Store
}

// EffectivePrivileges returns the active privilege names the role grants,
// uppercase. Unknown roles grant nothing; deactivated privileges are
// excluded.
func (s *AuthorizeService) EffectivePrivileges(ctx context.Context, roleName string) ([]string, error) {
	role, err := s.Store.Roles().GetRoleByName(ctx, strings.ToUpper(roleName))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	privs, err := s.Store.Roles().ListRolePrivileges(ctx, role.ID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(privs))
	for _, p := range privs {
		if !p.Active {
			continue
		}
		names = append(names, p.Name)
	}
	return names, nil
}

// Can reports whether the role grants the named privilege. Deny by default:
// unknown roles and unknown privileges simply answer false.
func (s *AuthorizeService) Can(ctx context.Context, roleName, privilege string) (bool, error) {
	names, err := s.EffectivePrivileges(ctx, roleName)
	if err != nil {
		return false, err
	}
	want := strings.ToUpper(privilege)
	for _, n := range names {
		if n == want {
			return true, nil
		}
	}
	return false, nil
}

// HasRole is the coarse gate: does the caller's role name appear in the
// allowed set.
func (s *AuthorizeService) HasRole(callerRole string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(callerRole, a) {
			return true
		}
	}
	return false
}

// CanActOn implements the owner-or-admin rule used by the self-service
// endpoints: callers touch their own record freely, admins touch anyone's.
func (s *AuthorizeService) CanActOn(callerID, callerRole, targetUserID string) bool {
	if callerRole == domain.RoleAdmin {
		return true
	}
	return callerID != "" && callerID == targetUserID
}
