package http

import (
	"net/http"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/pkg/httpx"
)

// PrivilegesHandler covers the privilege catalog.
type PrivilegesHandler struct {
	Privileges *service.PrivilegeService
}

type privilegeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Module      string `json:"module"`
}

func (h *PrivilegesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req privilegeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	p, err := h.Privileges.Create(r.Context(), req.Name, req.Description, req.Module)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newPrivilegeResponse(p))
}

func (h *PrivilegesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	q := r.URL.Query()

	privs, total, err := h.Privileges.List(r.Context(), service.PrivilegeFilter{
		Search: q.Get("search"),
		Module: q.Get("module"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := ListResponse[PrivilegeResponse]{Items: make([]PrivilegeResponse, 0, len(privs)), Total: total, Limit: limit, Offset: offset}
	for _, p := range privs {
		resp.Items = append(resp.Items, newPrivilegeResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *PrivilegesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.Privileges.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPrivilegeResponse(p))
}

func (h *PrivilegesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req privilegeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}

	p, err := h.Privileges.Update(r.Context(), r.PathValue("id"), req.Name, req.Description, req.Module)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPrivilegeResponse(p))
}

type setPrivilegeActiveRequest struct {
	Active *bool `json:"is_active"`
}

// HandleSetActive flips a privilege on or off without touching its grants.
func (h *PrivilegesHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setPrivilegeActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Malformed JSON body")
		return
	}
	if req.Active == nil {
		badRequest(w, "is_active is required")
		return
	}

	p, err := h.Privileges.SetActive(r.Context(), r.PathValue("id"), *req.Active)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPrivilegeResponse(p))
}

func (h *PrivilegesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Privileges.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
