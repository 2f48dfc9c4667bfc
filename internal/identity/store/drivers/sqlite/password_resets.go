package sqlite

import (
	"context"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
)

type passwordResetsRepo struct {
	db dbtx
}

func (r *passwordResetsRepo) CreatePasswordReset(ctx context.Context, p domain.PasswordReset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TokenHash, p.Used, p.ExpiresAt.UTC(), time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *passwordResetsRepo) GetActivePasswordResetByHash(ctx context.Context, hash string, now time.Time) (domain.PasswordReset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, used, expires_at, created_at
		FROM password_resets
		WHERE token_hash = ? AND used = 0 AND expires_at > ?`,
		hash, now.UTC())

	var p domain.PasswordReset
	err := row.Scan(&p.ID, &p.UserID, &p.TokenHash, &p.Used, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		return domain.PasswordReset{}, mapNotFound(err)
	}
	return p, nil
}

func (r *passwordResetsRepo) MarkPasswordResetUsed(ctx context.Context, resetID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE password_resets SET used = 1 WHERE id = ? AND used = 0`,
		resetID,
	)
	if err != nil {
		return err
	}
	return requireRowChanged(res)
}

func (r *passwordResetsRepo) InvalidateUserPasswordResets(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE password_resets SET used = 1 WHERE user_id = ? AND used = 0`,
		userID,
	)
	return err
}

func (r *passwordResetsRepo) DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM password_resets WHERE expires_at < ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
