package app

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/jwtx"
)

// loadOrCreateSigningKey reads the Ed25519 signing key from the configured
// file, generating and persisting one on first boot. Persisting the key keeps
// issued access tokens valid across restarts. An empty path means ephemeral:
// a fresh key per process, invalidating all outstanding tokens on restart.
func loadOrCreateSigningKey(path string, logger *slog.Logger) (*jwtx.EdDSASigner, error) {
	var pemKey []byte

	switch {
	case path == "":
		key, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		pemKey = key
		logger.Warn("no signing key file configured, using ephemeral key")

	default:
		key, err := os.ReadFile(path)
		switch {
		case err == nil:
			pemKey = key
		case errors.Is(err, os.ErrNotExist):
			key, genErr := cryptox.GenerateEd25519Key()
			if genErr != nil {
				return nil, genErr
			}
			if writeErr := os.WriteFile(path, key, 0o600); writeErr != nil {
				return nil, fmt.Errorf("persist signing key: %w", writeErr)
			}
			pemKey = key
			logger.Info("generated new signing key", "path", path)
		default:
			return nil, fmt.Errorf("read signing key: %w", err)
		}
	}

	signer, err := jwtx.NewSignerEdDSA(keyID(pemKey), pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	return signer, nil
}

// keyID derives a stable kid from the key material so restarts with the same
// key file advertise the same id.
func keyID(pemKey []byte) string {
	sum := sha256.Sum256(pemKey)
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
