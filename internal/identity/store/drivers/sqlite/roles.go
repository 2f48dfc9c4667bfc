package sqlite

import (
	"context"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
)

type rolesRepo struct {
	db dbtx
}

const roleColumns = `id, name, description, system, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (domain.Role, error) {
	var r domain.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.System, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id)
	role, err := scanRole(row)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = ?`, name)
	role, err := scanRole(row)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, description, system, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		role.ID, role.Name, role.Description, role.System, now, now,
	)
	return mapConstraint(err)
}

func (r *rolesRepo) UpdateRole(ctx context.Context, roleID, name, description string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE roles SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, description, time.Now().UTC(), roleID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRowChanged(res)
}

func (r *rolesRepo) DeleteRole(ctx context.Context, roleID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, roleID)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func (r *rolesRepo) ListRoles(ctx context.Context, limit, offset int) ([]domain.Role, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY name LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	return roles, total, rows.Err()
}

func (r *rolesRepo) GrantPrivilege(ctx context.Context, roleID, privilegeID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO role_privileges (role_id, privilege_id) VALUES (?, ?)`,
		roleID, privilegeID,
	)
	return err
}

func (r *rolesRepo) RevokePrivilege(ctx context.Context, roleID, privilegeID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM role_privileges WHERE role_id = ? AND privilege_id = ?`,
		roleID, privilegeID,
	)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func (r *rolesRepo) ListRolePrivileges(ctx context.Context, roleID string) ([]domain.Privilege, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.module, p.is_active, p.created_at, p.updated_at
		FROM privileges p
		JOIN role_privileges rp ON rp.privilege_id = p.id
		WHERE rp.role_id = ?
		ORDER BY p.name`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var privs []domain.Privilege
	for rows.Next() {
		p, err := scanPrivilege(rows)
		if err != nil {
			return nil, err
		}
		privs = append(privs, p)
	}
	return privs, rows.Err()
}
