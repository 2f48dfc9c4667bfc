package http

import (
	"net/http"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
)

// PasswordHandler covers the password recovery endpoints.
type PasswordHandler struct {
	Accounts *service.AccountService
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgot always answers 202: the response must not reveal whether an
// address has an account.
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.Email == "" {
		badRequest(w, "email is required")
		return
	}

	if err := h.Accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		badRequest(w, "token and new_password are required")
		return
	}

	if err := h.Accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}
