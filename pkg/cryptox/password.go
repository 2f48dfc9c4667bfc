package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. These are fixed configuration, not tunables: the
// whole point of an adaptive hash is that the cost is deliberate.
const (
	memory      = 19 * 1024 // KiB (19 MiB)
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

// ErrPasswordMismatch is returned by VerifyPassword when the plaintext does
// not match the stored digest. Malformed digests also surface as this
// family of errors so callers can treat any failure as a plain non-match.
var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// HashPassword produces a PHC-format Argon2id digest including salt and
// parameters. The plaintext is combined with the process-wide pepper before
// hashing, so digests are only verifiable by a process holding the same
// pepper file.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password+GetPepper()), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

var (
	dummyHash     string
	dummyHashOnce sync.Once
)

// DummyHash returns a digest of a throwaway password. Login paths verify
// against it when the account does not exist, so lookups for unknown and
// known addresses take comparable time.
func DummyHash() string {
	dummyHashOnce.Do(func() {
		h, err := HashPassword("not-a-real-password")
		if err != nil {
			panic(err)
		}
		dummyHash = h
	})
	return dummyHash
}

// VerifyPassword compares a plaintext password against a PHC-style Argon2id
// digest. It returns nil on match and an error otherwise; a malformed or
// truncated digest is reported as an error, never a panic, so a corrupted
// row degrades to "wrong password" at the call site.
func VerifyPassword(password, encodedHash string) error {
	// Expected layout: $argon2id$v=19$m=X,t=Y,p=Z$salt$hash
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return fmt.Errorf("%w: malformed digest", ErrPasswordMismatch)
	}
	if parts[1] != "argon2id" {
		return fmt.Errorf("%w: not argon2id", ErrPasswordMismatch)
	}
	if parts[2] != "v=19" {
		return fmt.Errorf("%w: unsupported version", ErrPasswordMismatch)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: bad parameters", ErrPasswordMismatch)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: bad salt encoding", ErrPasswordMismatch)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: bad hash encoding", ErrPasswordMismatch)
	}
	if len(want) == 0 {
		return fmt.Errorf("%w: empty hash", ErrPasswordMismatch)
	}

	got := argon2.IDKey([]byte(password+GetPepper()), salt, iters, mem, par, uint32(len(want)))

	if subtle.ConstantTimeCompare(got, want) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}
