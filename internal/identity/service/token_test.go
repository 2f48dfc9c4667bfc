package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/jwtx"
)

func TestRotate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user := env.registerVerified(t, "ivan@example.com", "ivan-password")

	t.Run("issues fresh pair and retires the old token", func(t *testing.T) {
		pair, err := env.tokens.IssuePair(ctx, user)
		require.NoError(t, err)

		rotated, err := env.tokens.Rotate(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
		require.NotEmpty(t, rotated.AccessToken)

		// Replay of the consumed token fails.
		_, err = env.tokens.Rotate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)

		// The replacement still works.
		_, err = env.tokens.Rotate(ctx, rotated.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		_, err := env.tokens.Rotate(ctx, "never-issued")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		short := &TokenService{
			Signer:     env.tokens.Signer,
			Verifier:   env.tokens.Verifier,
			Store:      env.store,
			Issuer:     env.tokens.Issuer,
			AccessTTL:  env.tokens.AccessTTL,
			RefreshTTL: -time.Minute, // already expired when stored
		}
		pair, err := short.IssuePair(ctx, user)
		require.NoError(t, err)

		_, err = env.tokens.Rotate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user := env.registerVerified(t, "judy@example.com", "judy-password")

	t.Run("revoked token cannot rotate", func(t *testing.T) {
		pair, err := env.tokens.IssuePair(ctx, user)
		require.NoError(t, err)

		require.NoError(t, env.tokens.Revoke(ctx, pair.RefreshToken))
		_, err = env.tokens.Rotate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("revoke is idempotent and tolerates unknown tokens", func(t *testing.T) {
		pair, err := env.tokens.IssuePair(ctx, user)
		require.NoError(t, err)

		require.NoError(t, env.tokens.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, env.tokens.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, env.tokens.Revoke(ctx, "never-issued"))
	})

	t.Run("revoke all kills every session", func(t *testing.T) {
		p1, err := env.tokens.IssuePair(ctx, user)
		require.NoError(t, err)
		p2, err := env.tokens.IssuePair(ctx, user)
		require.NoError(t, err)

		require.NoError(t, env.tokens.RevokeAllForUser(ctx, user.ID))

		_, err = env.tokens.Rotate(ctx, p1.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
		_, err = env.tokens.Rotate(ctx, p2.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestVerifyAccessToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user := env.registerVerified(t, "kim@example.com", "kim-password")

	t.Run("valid token passes", func(t *testing.T) {
		pair, err := env.tokens.IssuePair(ctx, user)
		require.NoError(t, err)

		claims, err := env.tokens.VerifyAccessToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
	})

	t.Run("verification token is not an access token", func(t *testing.T) {
		vt, err := env.tokens.IssueVerificationToken(user.ID)
		require.NoError(t, err)

		_, err = env.tokens.VerifyAccessToken(ctx, vt)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token reports expiry", func(t *testing.T) {
		claims := jwtx.NewAccessClaims(user.ID, "USER", env.tokens.Issuer, -time.Minute, time.Now())
		signed, err := env.tokens.Signer.Sign(claims)
		require.NoError(t, err)

		_, err = env.tokens.VerifyAccessToken(ctx, signed)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestHousekeepingSweep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user := env.registerVerified(t, "liam@example.com", "liam-password")

	// Plant an already-expired refresh token and password reset.
	expired := &TokenService{
		Signer:     env.tokens.Signer,
		Verifier:   env.tokens.Verifier,
		Store:      env.store,
		Issuer:     env.tokens.Issuer,
		AccessTTL:  env.tokens.AccessTTL,
		RefreshTTL: -time.Hour,
	}
	pair, err := expired.IssuePair(ctx, user)
	require.NoError(t, err)

	hk := NewHousekeepingService(env.store, testLogger(), time.Hour)
	hk.Start()
	hk.Stop() // Start sweeps immediately; Stop waits for it

	fp := cryptox.FingerprintToken(pair.RefreshToken)
	_, err = env.store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	require.Error(t, err)
}
