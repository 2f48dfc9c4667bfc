package http

import (
	"net/http"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
)

// MeHandler covers the authenticated self-service endpoints under /v1/me.
type MeHandler struct {
	Accounts *service.AccountService
}

func (h *MeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.GetUser(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// Only name and email are settable; pointer fields distinguish "absent"
// from "set to empty". Anything else in the body is dropped, not rejected.
type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (h *MeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httpx.DecodeJSONLenient(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	user, err := h.Accounts.UpdateProfile(r.Context(), httpx.UserIDFromContext(r.Context()), req.Name, req.Email)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *MeHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		badRequest(w, "current_password and new_password are required")
		return
	}

	err := h.Accounts.ChangePassword(r.Context(), httpx.UserIDFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
