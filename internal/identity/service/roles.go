package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/idx"
)

var (
	ErrRoleNotFound = errors.New("role_not_found")
	ErrRoleExists   = errors.New("role_exists")
	ErrSystemRole   = errors.New("system_role_protected")
	ErrRoleInUse    = errors.New("role_in_use")
	ErrInvalidInput = errors.New("invalid_input")
	ErrPrivNotFound = errors.New("privilege_not_found")
	ErrPrivExists   = errors.New("privilege_exists")
)

// RolesService manages roles and their privilege grants. The seeded system
// roles (ADMIN, USER) can be read and granted privileges but never renamed
// or deleted.
type RolesService struct {
	Store store.Store
}

func (s *RolesService) Create(ctx context.Context, name, description string) (domain.Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return domain.Role{}, ErrInvalidInput
	}

	role := domain.Role{
		ID:          idx.New().String(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.Store.Roles().CreateRole(ctx, role); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, ErrRoleExists
		}
		return domain.Role{}, err
	}
	return role, nil
}

func (s *RolesService) Get(ctx context.Context, roleID string) (domain.Role, error) {
	role, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Role{}, ErrRoleNotFound
		}
		return domain.Role{}, err
	}
	return role, nil
}

func (s *RolesService) List(ctx context.Context, limit, offset int) ([]domain.Role, int, error) {
	return s.Store.Roles().ListRoles(ctx, normalizeLimit(limit), max(offset, 0))
}

// Update renames a role. System roles are immutable.
func (s *RolesService) Update(ctx context.Context, roleID, name, description string) (domain.Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return domain.Role{}, ErrInvalidInput
	}

	role, err := s.Get(ctx, roleID)
	if err != nil {
		return domain.Role{}, err
	}
	if role.IsSystem() {
		return domain.Role{}, ErrSystemRole
	}

	if err := s.Store.Roles().UpdateRole(ctx, roleID, name, strings.TrimSpace(description)); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, ErrRoleExists
		}
		if errors.Is(err, store.ErrNotFound) {
			return domain.Role{}, ErrRoleNotFound
		}
		return domain.Role{}, err
	}
	return s.Get(ctx, roleID)
}

// Delete removes a role. Refused for system roles and for roles that still
// have users assigned.
func (s *RolesService) Delete(ctx context.Context, roleID string) error {
	role, err := s.Get(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem() {
		return ErrSystemRole
	}

	count, err := s.Store.Users().CountByRole(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRoleInUse
	}

	err = s.Store.Roles().DeleteRole(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRoleNotFound
	}
	return err
}

// Grant attaches a privilege to a role. Idempotent.
func (s *RolesService) Grant(ctx context.Context, roleID, privilegeID string) error {
	if _, err := s.Get(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.Store.Privileges().GetPrivilegeByID(ctx, privilegeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrivNotFound
		}
		return err
	}
	return s.Store.Roles().GrantPrivilege(ctx, roleID, privilegeID)
}

// Revoke detaches a privilege from a role.
func (s *RolesService) Revoke(ctx context.Context, roleID, privilegeID string) error {
	if _, err := s.Get(ctx, roleID); err != nil {
		return err
	}
	err := s.Store.Roles().RevokePrivilege(ctx, roleID, privilegeID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPrivNotFound
	}
	return err
}

// Privileges lists the privileges attached to a role.
func (s *RolesService) Privileges(ctx context.Context, roleID string) ([]domain.Privilege, error) {
	if _, err := s.Get(ctx, roleID); err != nil {
		return nil, err
	}
	return s.Store.Roles().ListRolePrivileges(ctx, roleID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
