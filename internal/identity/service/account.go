package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/mail"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/idx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

var (
	ErrEmailTaken        = errors.New("email_taken")
	ErrUserNotFound      = errors.New("user_not_found")
	ErrInvalidResetToken = errors.New("invalid_reset_token")
	ErrWeakPassword      = errors.New("weak_password")
	ErrAccountDisabled   = errors.New("account_disabled")
)

// MinPasswordLength is enforced on registration and every password change.
const MinPasswordLength = 8

// PasswordResetTTL is how long an emailed reset token stays redeemable.
const PasswordResetTTL = time.Hour

// AccountService owns the self-service account lifecycle: registration,
// login, email verification, and password recovery.
type AccountService struct {
	Store  store.Store
	Tokens *TokenService
	Mailer mail.Mailer
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// Register creates a user under the default USER role and dispatches the
// verification email. The email send is best-effort: the account commit
// stands even when the mailer fails, and the user can request a resend.
// The returned access token lets the fresh account call the profile
// endpoints right away; anything more waits on email verification.
func (s *AccountService) Register(ctx context.Context, p RegisterParams) (domain.User, string, error) {
	log := slogx.FromContext(ctx)

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if err := validatePassword(p.Password); err != nil {
		return domain.User{}, "", err
	}

	hash, err := cryptox.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, "", err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Name:         strings.TrimSpace(p.Name),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByName(ctx, domain.RoleUser)
		if err != nil {
			return err
		}
		user.RoleID = role.ID

		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, "", err
	}

	access, err := s.Tokens.IssueAccessToken(ctx, user)
	if err != nil {
		return domain.User{}, "", err
	}

	s.sendVerificationEmail(ctx, user)
	log.Info("user registered", "user_id", user.ID)
	return user, access, nil
}

// Login checks the credentials and, for verified accounts, returns a fresh
// token pair. Unknown emails and wrong passwords are indistinguishable to
// the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.TokenPair, domain.User, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so missing accounts don't answer faster.
			_ = cryptox.VerifyPassword(password, cryptox.DummyHash())
			return nil, domain.User{}, ErrInvalidCredentials
		}
		return nil, domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		log.Info("login password mismatch", "user_id", user.ID)
		return nil, domain.User{}, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, domain.User{}, ErrEmailNotVerified
	}
	if !user.Active {
		return nil, domain.User{}, ErrAccountDisabled
	}

	pair, err := s.Tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, domain.User{}, err
	}

	now := time.Now().UTC()
	if err := s.Store.Users().UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Error("last login update failed", "user_id", user.ID, "err", err)
	} else {
		user.LastLogin = &now
	}

	return pair, user, nil
}

// VerifyEmail redeems the emailed JWT and marks the account verified.
// Verifying an already verified account succeeds.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.Tokens.VerifyVerificationToken(token)
	if err != nil {
		return err
	}

	err = s.Store.Users().MarkEmailVerified(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// ResendVerification issues a fresh verification email for an unverified
// account. Verified accounts get nothing.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // don't leak which addresses exist
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	s.sendVerificationEmail(ctx, user)
	return nil
}

// ForgotPassword mints a single-use reset token and emails it. Previously
// issued unused tokens are invalidated so only the latest link redeems.
// Unknown emails still return success to keep addresses unguessable.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}

	reset := domain.PasswordReset{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: time.Now().Add(PasswordResetTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.PasswordResets().InvalidateUserPasswordResets(ctx, user.ID); err != nil {
			return err
		}
		return tx.PasswordResets().CreatePasswordReset(ctx, reset)
	})
	if err != nil {
		return err
	}

	if err := s.Mailer.SendPasswordResetEmail(ctx, user.Email, opaque); err != nil {
		log.Error("password reset email dispatch failed", "user_id", user.ID, "err", err)
	}
	return nil
}

// ResetPassword redeems a reset token and installs the new password. The
// token is marked used and every live refresh token the user holds is
// revoked in the same transaction.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	fp := cryptox.FingerprintToken(token)
	now := time.Now()

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		reset, err := tx.PasswordResets().GetActivePasswordResetByHash(ctx, fp, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}

		if err := tx.PasswordResets().MarkPasswordResetUsed(ctx, reset.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}

		if err := tx.Users().UpdatePasswordHash(ctx, reset.UserID, hash); err != nil {
			return err
		}

		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, reset.UserID)
	})
}

// ChangePassword is the authenticated variant: the caller proves the current
// password before the swap. Other sessions are logged out.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
	})
}

// UpdateProfile mutates exactly the name and email fields; nil leaves a
// field untouched. An email change is re-checked against the unique index.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, name, email *string) (domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}
	if email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*email))
	}

	err = s.Store.Users().UpdateProfile(ctx, userID, user.Name, user.Email)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.User{}, ErrUserNotFound
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return s.GetUser(ctx, userID)
}

// GetUser fetches a single account.
func (s *AccountService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *AccountService) sendVerificationEmail(ctx context.Context, user domain.User) {
	log := slogx.FromContext(ctx)

	token, err := s.Tokens.IssueVerificationToken(user.ID)
	if err != nil {
		log.Error("verification token mint failed", "user_id", user.ID, "err", err)
		return
	}
	if err := s.Mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		log.Error("verification email dispatch failed", "user_id", user.ID, "err", err)
	}
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
