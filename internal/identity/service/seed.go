package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/idx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

// SeedService provisions the system roles, their baseline privileges, and
// (when configured) an initial administrator account. It runs once at boot
// and is idempotent, so restarting the service never duplicates anything.
type SeedService struct {
	Store store.Store
}

// Apply reconciles the database against the seed definition.
func (s *SeedService) Apply(ctx context.Context, seed domain.SeedData) error {
	log := slogx.FromContext(ctx)

	if len(seed.Roles) == 0 {
		seed.Roles = domain.DefaultSeedRoles()
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, def := range seed.Roles {
			if err := s.ensureRole(ctx, tx, def); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if seed.AdminEmail == "" {
		return nil
	}

	created, err := s.ensureAdmin(ctx, seed)
	if err != nil {
		return err
	}
	if created {
		log.Info("initial admin provisioned", "email", seed.AdminEmail)
	}
	return nil
}

func (s *SeedService) ensureRole(ctx context.Context, tx store.Tx, def domain.RoleDefinition) error {
	role, err := tx.Roles().GetRoleByName(ctx, def.Name)
	if errors.Is(err, store.ErrNotFound) {
		role = domain.Role{
			ID:          idx.New().String(),
			Name:        def.Name,
			Description: def.Description,
			System:      true,
		}
		if err := tx.Roles().CreateRole(ctx, role); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	for _, privDef := range def.Privileges {
		priv, err := tx.Privileges().GetPrivilegeByName(ctx, privDef.Name)
		if errors.Is(err, store.ErrNotFound) {
			priv = domain.Privilege{
				ID:     idx.New().String(),
				Name:   privDef.Name,
				Module: privDef.Module,
				Active: true,
			}
			if err := tx.Privileges().CreatePrivilege(ctx, priv); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Roles().GrantPrivilege(ctx, role.ID, priv.ID); err != nil {
			return err
		}
	}
	return nil
}

// ensureAdmin creates the configured admin account if the address is free.
// The account is born verified; there is nobody to click the link yet.
func (s *SeedService) ensureAdmin(ctx context.Context, seed domain.SeedData) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.AdminEmail))

	_, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if seed.AdminPassword == "" {
		return false, errors.New("seed: admin email set but password empty")
	}

	hash, err := cryptox.HashPassword(seed.AdminPassword)
	if err != nil {
		return false, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByName(ctx, domain.RoleAdmin)
		if err != nil {
			return err
		}
		return tx.Users().CreateUser(ctx, domain.User{
			ID:            idx.New().String(),
			Name:          seed.AdminName,
			Email:         email,
			PasswordHash:  hash,
			RoleID:        role.ID,
			EmailVerified: true,
			Active:        true,
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, nil // lost a race with another instance; fine
		}
		return false, err
	}
	return true, nil
}
