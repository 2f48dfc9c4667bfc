package http

import (
	"net/http"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
)

// AuthHandler covers the public account endpoints: registration, login,
// email verification, and logout.
type AuthHandler struct {
	Accounts *service.AccountService
	Tokens   *service.TokenService
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", "email and password are required")
		return
	}

	user, access, err := h.Accounts.Register(r.Context(), service.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		User:        newUserResponse(user),
		AccessToken: access,
		TokenType:   "Bearer",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	TokenResponse
	User UserResponse `json:"user"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	pair, user, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		TokenResponse: newTokenResponse(pair),
		User:          newUserResponse(user),
	})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.Token == "" {
		badRequest(w, "token is required")
		return
	}

	if err := h.Accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	if err := h.Accounts.ResendVerification(r.Context(), req.Email); err != nil {
		respondServiceError(w, r, err)
		return
	}

	// Uniform answer whether or not the address exists.
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleLogout revokes the presented refresh token. Revocation is
// idempotent, so repeated logouts and unknown tokens all answer 204.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.RefreshToken == "" {
		badRequest(w, "refresh_token is required")
		return
	}

	if err := h.Tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll revokes every refresh token the authenticated caller
// holds ("log out all devices").
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())

	if err := h.Tokens.RevokeAllForUser(r.Context(), userID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
