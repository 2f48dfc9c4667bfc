package http

import (
	"net/http"
	"strconv"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
)

// UsersHandler covers the administrative account endpoints. Reads on a
// single user allow the owner as well as admins; everything else is
// privilege-gated in the router.
type UsersHandler struct {
	Users     *service.UserAdminService
	Authorize *service.AuthorizeService
}

func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	users, total, err := h.Users.List(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := ListResponse[UserResponse]{Items: make([]UserResponse, 0, len(users)), Total: total, Limit: limit, Offset: offset}
	for _, u := range users {
		resp.Items = append(resp.Items, newUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := r.PathValue("id")

	if !h.Authorize.CanActOn(httpx.UserIDFromContext(ctx), httpx.RoleFromContext(ctx), targetID) {
		respondServiceError(w, r, service.ErrForbidden)
		return
	}

	user, err := h.Users.Get(ctx, targetID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (h *UsersHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.RoleID == "" {
		badRequest(w, "role_id is required")
		return
	}

	user, err := h.Users.AssignRole(r.Context(), r.PathValue("id"), req.RoleID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

type setActiveRequest struct {
	Active *bool `json:"is_active"`
}

// HandleSetActive enables or disables an account. Disabling kills the
// account's refresh tokens as a side effect.
func (h *UsersHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.Active == nil {
		badRequest(w, "is_active is required")
		return
	}

	user, err := h.Users.SetActive(r.Context(), r.PathValue("id"), *req.Active)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parsePage reads limit/offset query parameters; the services clamp them.
func parsePage(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}
