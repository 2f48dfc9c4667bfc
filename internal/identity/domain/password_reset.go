package domain

import "time"

// PasswordReset models a single-use reset token record. The raw token is
// only ever emailed to the user; the DB holds its fingerprint.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the emailed token
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable reports whether the reset can still redeem at the given instant.
func (p PasswordReset) Usable(now time.Time) bool {
	return !p.Used && now.Before(p.ExpiresAt)
}
