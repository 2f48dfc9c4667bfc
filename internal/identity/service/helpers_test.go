package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/mail"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/internal/identity/store/drivers/sqlite"
	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/jwtx"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "service-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

// captureMailer records outgoing messages so tests can assert on tokens
// without a real mail relay.
type captureMailer struct {
	verifications []capturedMail
	resets        []capturedMail
}

type capturedMail struct {
	to    string
	token string
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.verifications = append(m.verifications, capturedMail{to: to, token: token})
	return nil
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.resets = append(m.resets, capturedMail{to: to, token: token})
	return nil
}

var _ mail.Mailer = (*captureMailer)(nil)

type testEnv struct {
	store    store.Store
	tokens   *TokenService
	accounts *AccountService
	mailer   *captureMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	seeder := &SeedService{Store: s}
	require.NoError(t, seeder.Apply(context.Background(), domain.SeedData{}))

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test", pemKey)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), "identity-test")

	tokens := &TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Store:      s,
		Issuer:     "identity-test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	mailer := &captureMailer{}
	accounts := &AccountService{
		Store:  s,
		Tokens: tokens,
		Mailer: mailer,
	}

	return &testEnv{
		store:    s,
		tokens:   tokens,
		accounts: accounts,
		mailer:   mailer,
	}
}

// registerVerified registers an account and completes email verification.
func (e *testEnv) registerVerified(t *testing.T, email, password string) domain.User {
	t.Helper()

	user, _, err := e.accounts.Register(context.Background(), RegisterParams{
		Email:    email,
		Password: password,
		Name:     "Test User",
	})
	require.NoError(t, err)

	require.NotEmpty(t, e.mailer.verifications)
	last := e.mailer.verifications[len(e.mailer.verifications)-1]
	require.NoError(t, e.accounts.VerifyEmail(context.Background(), last.token))

	return user
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
