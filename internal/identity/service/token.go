package service

import (
	"context"
	"errors"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/idx"
	"github.com/nimbus-labs/identity/pkg/jwtx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailNotVerified   = errors.New("email_not_verified")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidToken       = errors.New("invalid_token")
)

// TokenService mints, rotates, and revokes the two token kinds: short-lived
// JWT access tokens and opaque stored refresh tokens.
type TokenService struct {
	Signer     jwtx.Signer
	Verifier   jwtx.Verifier
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
}

// IssuePair signs a fresh access token and persists a new refresh token for
// the user. Callers (login, rotation) hand it an already-authenticated user.
func (s *TokenService) IssuePair(ctx context.Context, user domain.User) (*domain.TokenPair, error) {
	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, err = s.issuePairTx(ctx, tx, user, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// IssueAccessToken signs a standalone access token, no refresh token
// attached. Registration uses it so the new account can exercise the
// profile endpoints before verifying.
func (s *TokenService) IssueAccessToken(ctx context.Context, user domain.User) (string, error) {
	roleName, err := s.roleName(ctx, s.Store.Roles(), user.RoleID)
	if err != nil {
		return "", err
	}
	claims := jwtx.NewAccessClaims(user.ID, roleName, s.Issuer, s.AccessTTL, time.Now())
	return s.Signer.Sign(claims)
}

// issuePairTx does the actual minting inside the caller's transaction so
// rotation can revoke-and-issue atomically.
func (s *TokenService) issuePairTx(ctx context.Context, tx store.Tx, user domain.User, now time.Time) (*domain.TokenPair, error) {
	roleName, err := s.roleName(ctx, tx.Roles(), user.RoleID)
	if err != nil {
		return nil, err
	}

	claims := jwtx.NewAccessClaims(user.ID, roleName, s.Issuer, s.AccessTTL, now)
	accessToken, err := s.Signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// roleName resolves the role claim. A user whose role was deleted out from
// under them (role_id set null by the schema) gets an empty role, which
// matches no privilege and no role gate.
func (s *TokenService) roleName(ctx context.Context, roles store.Roles, roleID string) (string, error) {
	if roleID == "" {
		return "", nil
	}
	role, err := roles.GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return role.Name, nil
}

// Rotate exchanges a refresh token for a new pair. The old token is consumed
// atomically with issuing the replacement, so a concurrently replayed token
// loses the race and gets ErrInvalidRefresh.
func (s *TokenService) Rotate(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now()
	fp := cryptox.FingerprintToken(refreshOpaque)

	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		if !rt.Active(now) {
			return ErrInvalidRefresh
		}

		// Conditional revoke; fails for everyone but the first caller.
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		user, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		pair, err = s.issuePairTx(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Revoke invalidates a single refresh token. Revoking an already-revoked or
// unknown token succeeds; logout must be repeatable.
func (s *TokenService) Revoke(ctx context.Context, refreshOpaque string) error {
	fp := cryptox.FingerprintToken(refreshOpaque)
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp)
}

// RevokeAllForUser invalidates every live refresh token a user holds. Used
// after password resets and account deletion.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}

// VerifyAccessToken checks signature, issuer, expiry, and that the token was
// minted for API access rather than some other purpose.
func (s *TokenService) VerifyAccessToken(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return jwtx.Claims{}, err
		}
		slogx.FromContext(ctx).Debug("access token rejected", "err", err)
		return jwtx.Claims{}, ErrInvalidToken
	}
	if err := claims.ValidatePurpose(jwtx.PurposeAccess); err != nil {
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// IssueVerificationToken mints the JWT embedded in the verification email
// link. It carries a dedicated purpose claim so it can never pass as an
// access token.
func (s *TokenService) IssueVerificationToken(userID string) (string, error) {
	ttl := s.VerifyTTL
	if ttl == 0 {
		ttl = jwtx.DefaultVerifyEmailTTL
	}
	claims := jwtx.NewVerifyEmailClaims(userID, s.Issuer, ttl, time.Now())
	return s.Signer.Sign(claims)
}

// VerifyVerificationToken validates an email verification JWT and returns
// the subject user id.
func (s *TokenService) VerifyVerificationToken(token string) (string, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return "", err
		}
		return "", ErrInvalidToken
	}
	if err := claims.ValidatePurpose(jwtx.PurposeVerifyEmail); err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
