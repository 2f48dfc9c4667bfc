package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/internal/identity/store/drivers/sqlite"
	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/jwtx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "http-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

type testServer struct {
	srv    *httptest.Server
	mailer *captureMailer
}

type captureMailer struct {
	verifications []string
	resets        []string
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, _, token string) error {
	m.verifications = append(m.verifications, token)
	return nil
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, _, token string) error {
	m.resets = append(m.resets, token)
	return nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	seeder := &service.SeedService{Store: st}
	require.NoError(t, seeder.Apply(context.Background(), domain.SeedData{
		AdminName:     "Admin",
		AdminEmail:    "admin@example.com",
		AdminPassword: "admin-password",
	}))

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test", pemKey)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), "identity-test")

	tokens := &service.TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Store:      st,
		Issuer:     "identity-test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
	mailer := &captureMailer{}

	router := NewRouter(verifier, "test", st, slogx.New(slogx.Config{Service: "identity", Level: "error"}))
	router.AccountService = &service.AccountService{Store: st, Tokens: tokens, Mailer: mailer}
	router.TokenService = tokens
	router.AuthorizeService = &service.AuthorizeService{Store: st}
	router.RolesService = &service.RolesService{Store: st}
	router.PrivilegeService = &service.PrivilegeService{Store: st}
	router.UserAdminService = &service.UserAdminService{Store: st, Tokens: tokens}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// register + verify + login, returning the access token.
func (s *testServer) loginUser(t *testing.T, email, password string) (access, refresh string) {
	t.Helper()

	resp, _ := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "Test User", "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token := s.mailer.verifications[len(s.mailer.verifications)-1]
	resp, _ = s.do(t, http.MethodPost, "/v1/auth/verify-email", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func (s *testServer) loginAdmin(t *testing.T) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "admin-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string)
}

func TestRegistrationFlow(t *testing.T) {
	s := newTestServer(t)

	t.Run("register returns the new user and an access token", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email": "Alice@Example.com", "password": "alice-password", "name": "Alice",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		user := body["user"].(map[string]any)
		require.Equal(t, "alice@example.com", user["email"])
		require.Equal(t, "Alice", user["name"])
		require.Equal(t, false, user["email_verified"])
		require.Equal(t, true, user["is_active"])
		require.NotEmpty(t, body["access_token"])
		require.Equal(t, "Bearer", body["token_type"])
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email": "alice@example.com", "password": "alice-password",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "email_taken", body["error"])
	})

	t.Run("login rejected until verified", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "alice-password",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "email_not_verified", body["error"])
	})

	t.Run("verify then login succeeds", func(t *testing.T) {
		token := s.mailer.verifications[0]
		resp, _ := s.do(t, http.MethodPost, "/v1/auth/verify-email", "", map[string]string{"token": token})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "alice-password",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, body["access_token"])
		require.Equal(t, "Bearer", body["token_type"])
	})
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	_, refresh := s.loginUser(t, "bob@example.com", "bob-password")

	t.Run("refresh rotates the token", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rotated := body["refresh_token"].(string)
		require.NotEqual(t, refresh, rotated)

		// old token is dead, new one works
		resp, _ = s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		refresh = rotated
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": refresh})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp, _ = s.do(t, http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": refresh})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogoutAll(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.loginUser(t, "frank@example.com", "frank-password")

	resp, _ := s.do(t, http.MethodPost, "/v1/auth/logout-all", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/v1/auth/logout-all", access, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordRecoveryFlow(t *testing.T) {
	s := newTestServer(t)
	s.loginUser(t, "carol@example.com", "carol-password")

	t.Run("forgot answers 202 for any address", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/v1/auth/forgot-password", "", map[string]string{"email": "carol@example.com"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		resp, _ = s.do(t, http.MethodPost, "/v1/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Len(t, s.mailer.resets, 1)
	})

	t.Run("reset installs the new password once", func(t *testing.T) {
		token := s.mailer.resets[0]
		resp, _ := s.do(t, http.MethodPost, "/v1/auth/reset-password", "", map[string]string{
			"token": token, "new_password": "carol-password-2",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// token is single use
		resp, body := s.do(t, http.MethodPost, "/v1/auth/reset-password", "", map[string]string{
			"token": token, "new_password": "carol-password-3",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "invalid_reset_token", body["error"])

		resp, _ = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email": "carol@example.com", "password": "carol-password-2",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestMeEndpoints(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.loginUser(t, "dave@example.com", "dave-password")

	t.Run("requires a token", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodGet, "/v1/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("returns and updates the profile", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, "/v1/me", access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "dave@example.com", body["email"])

		resp, body = s.do(t, http.MethodPatch, "/v1/me", access, map[string]string{
			"name": "Dave Grohl",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Dave Grohl", body["name"])
		require.Equal(t, "dave@example.com", body["email"])
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		resp, body := s.do(t, http.MethodPatch, "/v1/me", access, map[string]any{
			"email": "dave.g@example.com", "role_id": "sneaky", "is_active": false,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "dave.g@example.com", body["email"])
		require.Equal(t, true, body["is_active"])
	})

	t.Run("change password requires the current one", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/v1/me/change-password", access, map[string]string{
			"current_password": "wrong", "new_password": "dave-password-2",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = s.do(t, http.MethodPost, "/v1/me/change-password", access, map[string]string{
			"current_password": "dave-password", "new_password": "dave-password-2",
		})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAdmin(t)
	userAccess, _ := s.loginUser(t, "erin@example.com", "erin-password")

	t.Run("plain users cannot manage accounts or roles", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodGet, "/v1/users", userAccess, nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp, _ = s.do(t, http.MethodPost, "/v1/roles", userAccess, map[string]string{"name": "X"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin lists users", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, "/v1/users?limit=10", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 2, body["total"])
	})

	t.Run("owner reads own record, not others", func(t *testing.T) {
		resp, me := s.do(t, http.MethodGet, "/v1/me", userAccess, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		id := me["id"].(string)

		resp, _ = s.do(t, http.MethodGet, "/v1/users/"+id, userAccess, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, admins := s.do(t, http.MethodGet, "/v1/users?limit=10", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		for _, item := range admins["items"].([]any) {
			otherID := item.(map[string]any)["id"].(string)
			if otherID == id {
				continue
			}
			resp, _ = s.do(t, http.MethodGet, "/v1/users/"+otherID, userAccess, nil)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
	})

	t.Run("role lifecycle with grants", func(t *testing.T) {
		resp, role := s.do(t, http.MethodPost, "/v1/roles", admin, map[string]string{
			"name": "AUDITOR", "description": "read-only reviewer",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		roleID := role["id"].(string)

		resp, priv := s.do(t, http.MethodPost, "/v1/privileges", admin, map[string]string{
			"name": "audit_read", "module": "audit",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "AUDIT_READ", priv["name"])
		require.Equal(t, "AUDIT", priv["module"])
		privID := priv["id"].(string)

		resp, _ = s.do(t, http.MethodPut, fmt.Sprintf("/v1/roles/%s/privileges/%s", roleID, privID), admin, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, privs := s.do(t, http.MethodGet, "/v1/roles/"+roleID+"/privileges", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, privs["privileges"], 1)

		resp, _ = s.do(t, http.MethodDelete, "/v1/roles/"+roleID, admin, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("system roles are protected", func(t *testing.T) {
		resp, roleList := s.do(t, http.MethodGet, "/v1/roles?limit=50", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		for _, item := range roleList["items"].([]any) {
			role := item.(map[string]any)
			if role["system"] != true {
				continue
			}
			resp, body := s.do(t, http.MethodDelete, "/v1/roles/"+role["id"].(string), admin, nil)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.Equal(t, "system_role_protected", body["error"])
		}
	})

	t.Run("deactivated accounts are locked out", func(t *testing.T) {
		resp, me := s.do(t, http.MethodGet, "/v1/me", userAccess, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		id := me["id"].(string)

		resp, body := s.do(t, http.MethodPatch, "/v1/users/"+id+"/active", admin, map[string]bool{"is_active": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, false, body["is_active"])

		resp, body = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email": "erin@example.com", "password": "erin-password",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "account_disabled", body["error"])

		resp, body = s.do(t, http.MethodPatch, "/v1/users/"+id+"/active", admin, map[string]bool{"is_active": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["is_active"])
	})

	t.Run("privilege deactivation suspends the grant", func(t *testing.T) {
		resp, priv := s.do(t, http.MethodPost, "/v1/privileges", admin, map[string]string{
			"name": "EXPORTS_RUN", "module": "EXPORTS",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		privID := priv["id"].(string)

		resp, body := s.do(t, http.MethodPatch, "/v1/privileges/"+privID+"/active", admin, map[string]bool{"is_active": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, false, body["is_active"])
	})

	t.Run("health endpoints are public", func(t *testing.T) {
		resp, body := s.do(t, http.MethodGet, "/livez", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body["status"])

		resp, body = s.do(t, http.MethodGet, "/readyz", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body["status"])
	})
}
