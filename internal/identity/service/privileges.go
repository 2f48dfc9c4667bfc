package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/idx"
)

// PrivilegeService manages the privilege catalog. Privileges are plain
// named capabilities grouped by module; meaning comes from which roles
// they are granted to. Names and modules are uppercase.
type PrivilegeService struct {
	Store store.Store
}

// PrivilegeFilter narrows List: substring search on name, exact module
// match. Zero values mean no filter.
type PrivilegeFilter struct {
	Search string
	Module string
	Limit  int
	Offset int
}

func (s *PrivilegeService) Create(ctx context.Context, name, description, module string) (domain.Privilege, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return domain.Privilege{}, ErrInvalidInput
	}

	p := domain.Privilege{
		ID:          idx.New().String(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Module:      strings.ToUpper(strings.TrimSpace(module)),
		Active:      true,
	}
	if err := s.Store.Privileges().CreatePrivilege(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Privilege{}, ErrPrivExists
		}
		return domain.Privilege{}, err
	}
	return p, nil
}

func (s *PrivilegeService) Get(ctx context.Context, privilegeID string) (domain.Privilege, error) {
	p, err := s.Store.Privileges().GetPrivilegeByID(ctx, privilegeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Privilege{}, ErrPrivNotFound
		}
		return domain.Privilege{}, err
	}
	return p, nil
}

func (s *PrivilegeService) List(ctx context.Context, f PrivilegeFilter) ([]domain.Privilege, int, error) {
	return s.Store.Privileges().ListPrivileges(ctx, store.PrivilegeFilter{
		Search: strings.ToUpper(strings.TrimSpace(f.Search)),
		Module: strings.ToUpper(strings.TrimSpace(f.Module)),
		Limit:  normalizeLimit(f.Limit),
		Offset: max(f.Offset, 0),
	})
}

func (s *PrivilegeService) Update(ctx context.Context, privilegeID, name, description, module string) (domain.Privilege, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return domain.Privilege{}, ErrInvalidInput
	}

	err := s.Store.Privileges().UpdatePrivilege(ctx, privilegeID, name,
		strings.TrimSpace(description), strings.ToUpper(strings.TrimSpace(module)))
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Privilege{}, ErrPrivExists
		}
		if errors.Is(err, store.ErrNotFound) {
			return domain.Privilege{}, ErrPrivNotFound
		}
		return domain.Privilege{}, err
	}
	return s.Get(ctx, privilegeID)
}

// SetActive toggles a privilege. Deactivating takes effect on the next
// authorization check; no grants are removed.
func (s *PrivilegeService) SetActive(ctx context.Context, privilegeID string, active bool) (domain.Privilege, error) {
	err := s.Store.Privileges().SetPrivilegeActive(ctx, privilegeID, active)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Privilege{}, ErrPrivNotFound
		}
		return domain.Privilege{}, err
	}
	return s.Get(ctx, privilegeID)
}

// Delete removes a privilege; the role_privileges rows cascade away, so any
// role holding it simply loses the grant.
func (s *PrivilegeService) Delete(ctx context.Context, privilegeID string) error {
	err := s.Store.Privileges().DeletePrivilege(ctx, privilegeID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPrivNotFound
	}
	return err
}
