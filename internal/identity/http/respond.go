package http

import (
	"errors"
	"net/http"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
	"github.com/nimbus-labs/identity/pkg/jwtx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

func writeError(w http.ResponseWriter, code int, err, desc string) {
	httpx.WriteJSON(w, code, ErrorResponse{Error: err, ErrorDescription: desc})
}

// respondServiceError maps the service sentinel errors onto HTTP statuses.
// Anything unmapped is a 500 and gets logged; the client only ever sees the
// generic envelope.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect")
	case errors.Is(err, service.ErrEmailNotVerified):
		writeError(w, http.StatusUnauthorized, "email_not_verified", "Verify your email address before logging in")
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, "account_disabled", "This account has been deactivated")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
	case errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusUnprocessableEntity, "weak_password", "Password does not meet the minimum requirements")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", "A required field is missing or malformed")
	case errors.Is(err, service.ErrInvalidRefresh):
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token is expired, revoked, or unknown")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "invalid_token", "Token is malformed or not valid for this operation")
	case errors.Is(err, jwtx.ErrExpired):
		writeError(w, http.StatusUnauthorized, "token_expired", "Token has expired")
	case errors.Is(err, service.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, "invalid_reset_token", "Reset token is expired, used, or unknown")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "")
	case errors.Is(err, service.ErrRoleNotFound):
		writeError(w, http.StatusNotFound, "role_not_found", "")
	case errors.Is(err, service.ErrPrivNotFound):
		writeError(w, http.StatusNotFound, "privilege_not_found", "")
	case errors.Is(err, service.ErrRoleExists):
		writeError(w, http.StatusConflict, "role_exists", "A role with this name already exists")
	case errors.Is(err, service.ErrPrivExists):
		writeError(w, http.StatusConflict, "privilege_exists", "A privilege with this name already exists")
	case errors.Is(err, service.ErrSystemRole):
		writeError(w, http.StatusForbidden, "system_role_protected", "System roles cannot be modified or deleted")
	case errors.Is(err, service.ErrRoleInUse):
		writeError(w, http.StatusConflict, "role_in_use", "Role still has users assigned")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "")
	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "")
	}
}

func badRequest(w http.ResponseWriter, desc string) {
	writeError(w, http.StatusBadRequest, "invalid_request", desc)
}
