package sqlite

import (
	"context"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
)

type privilegesRepo struct {
	db dbtx
}

const privilegeColumns = `id, name, description, module, is_active, created_at, updated_at`

func scanPrivilege(row interface{ Scan(...any) error }) (domain.Privilege, error) {
	var p domain.Privilege
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Module, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *privilegesRepo) GetPrivilegeByID(ctx context.Context, id string) (domain.Privilege, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+privilegeColumns+` FROM privileges WHERE id = ?`, id)
	p, err := scanPrivilege(row)
	if err != nil {
		return domain.Privilege{}, mapNotFound(err)
	}
	return p, nil
}

func (r *privilegesRepo) GetPrivilegeByName(ctx context.Context, name string) (domain.Privilege, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+privilegeColumns+` FROM privileges WHERE name = ?`, name)
	p, err := scanPrivilege(row)
	if err != nil {
		return domain.Privilege{}, mapNotFound(err)
	}
	return p, nil
}

func (r *privilegesRepo) CreatePrivilege(ctx context.Context, p domain.Privilege) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO privileges (id, name, description, module, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Module, p.Active, now, now,
	)
	return mapConstraint(err)
}

func (r *privilegesRepo) UpdatePrivilege(ctx context.Context, privilegeID, name, description, module string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE privileges SET name = ?, description = ?, module = ?, updated_at = ? WHERE id = ?`,
		name, description, module, time.Now().UTC(), privilegeID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRowChanged(res)
}

func (r *privilegesRepo) SetPrivilegeActive(ctx context.Context, privilegeID string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE privileges SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), privilegeID,
	)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func (r *privilegesRepo) DeletePrivilege(ctx context.Context, privilegeID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM privileges WHERE id = ?`, privilegeID)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func (r *privilegesRepo) ListPrivileges(ctx context.Context, filter store.PrivilegeFilter) ([]domain.Privilege, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Search != "" {
		where += ` AND name LIKE ?`
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Module != "" {
		where += ` AND module = ?`
		args = append(args, filter.Module)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM privileges`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+privilegeColumns+` FROM privileges`+where+` ORDER BY module, name LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var privs []domain.Privilege
	for rows.Next() {
		p, err := scanPrivilege(rows)
		if err != nil {
			return nil, 0, err
		}
		privs = append(privs, p)
	}
	return privs, total, rows.Err()
}
