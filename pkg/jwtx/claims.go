package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Access tokens stay short so a leaked one ages out
// fast; refresh tokens are server-side revocable so they can live longer.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultVerifyEmailTTL  = 24 * time.Hour
)

// Token purposes carried in the "purpose" claim. Access tokens omit the
// claim entirely; single-use flow tokens (email verification) carry one so
// they can never be replayed as an API credential.
const (
	PurposeAccess      = ""
	PurposeVerifyEmail = "email_verify"
)

// Claims are the signed assertions embedded in every token this service
// mints. Keep changes additive.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the name of the subject's role (e.g. "ADMIN", "USER").
	Role string `json:"role,omitempty"`

	// Purpose distinguishes flow tokens from access tokens.
	Purpose string `json:"purpose,omitempty"`
}

// NewAccessClaims builds the claims for a short-lived access token.
func NewAccessClaims(subject, role, issuer string, ttl time.Duration, now time.Time) Claims {
	return newClaims(subject, role, PurposeAccess, issuer, ttl, now)
}

// NewVerifyEmailClaims builds the claims for an email-verification token.
func NewVerifyEmailClaims(subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return newClaims(subject, "", PurposeVerifyEmail, issuer, ttl, now)
}

func newClaims(subject, role, purpose, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role:    role,
		Purpose: purpose,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer matches the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidatePurpose ensures a token minted for one flow cannot be replayed in
// another (e.g. a verification link used as a bearer token).
func (c *Claims) ValidatePurpose(expected string) error {
	if c.Purpose != expected {
		return ErrPurpose
	}
	return nil
}

// ValidateExpiry ensures the token is inside its [nbf, exp] window.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
