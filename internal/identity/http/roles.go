package http

import (
	"net/http"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
)

// RolesHandler covers role management and privilege grants.
type RolesHandler struct {
	Roles *service.RolesService
}

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	role, err := h.Roles.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newRoleResponse(role))
}

func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	roles, total, err := h.Roles.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := ListResponse[RoleResponse]{Items: make([]RoleResponse, 0, len(roles)), Total: total, Limit: limit, Offset: offset}
	for _, role := range roles {
		resp.Items = append(resp.Items, newRoleResponse(role))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *RolesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	role, err := h.Roles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newRoleResponse(role))
}

func (h *RolesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	role, err := h.Roles.Update(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newRoleResponse(role))
}

func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Roles.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RolesHandler) HandleListPrivileges(w http.ResponseWriter, r *http.Request) {
	privs, err := h.Roles.Privileges(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	items := make([]PrivilegeResponse, 0, len(privs))
	for _, p := range privs {
		items = append(items, newPrivilegeResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string][]PrivilegeResponse{"privileges": items})
}

func (h *RolesHandler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	if err := h.Roles.Grant(r.Context(), r.PathValue("id"), r.PathValue("privilegeID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RolesHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.Roles.Revoke(r.Context(), r.PathValue("id"), r.PathValue("privilegeID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
