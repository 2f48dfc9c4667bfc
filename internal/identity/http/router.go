package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/pkg/httpx"
	"github.com/nimbus-labs/identity/pkg/jwtx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	AccountService   *service.AccountService
	TokenService     *service.TokenService
	AuthorizeService *service.AuthorizeService
	RolesService     *service.RolesService
	PrivilegeService *service.PrivilegeService
	UserAdminService *service.UserAdminService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMe()
	r.registerUsers()
	r.registerRoles()
	r.registerPrivileges()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	auth := &AuthHandler{Accounts: r.AccountService, Tokens: r.TokenService}
	token := &TokenHandler{Tokens: r.TokenService}
	password := &PasswordHandler{Accounts: r.AccountService}

	// Credential endpoints get the strict per-IP limit to slow brute force.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(auth.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(auth.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-email",
		httpx.Chain(http.HandlerFunc(auth.HandleVerifyEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/resend-verification",
		httpx.Chain(http.HandlerFunc(auth.HandleResendVerification),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(token.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(auth.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(auth.HandleLogoutAll),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(password.HandleForgot),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(http.HandlerFunc(password.HandleReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMe() {
	h := &MeHandler{Accounts: r.AccountService}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		)
	}

	r.Mux.Handle("GET /v1/me", secured(h.HandleGet))
	r.Mux.Handle("PATCH /v1/me", secured(h.HandleUpdate))
	r.Mux.Handle("POST /v1/me/change-password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Users: r.UserAdminService, Authorize: r.AuthorizeService}

	privileged := func(fn http.HandlerFunc, privilege string) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequirePrivilege(r.AuthorizeService.Can, privilege),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/users", privileged(h.HandleList, "USERS_READ"))
	r.Mux.Handle("PUT /v1/users/{id}/role", privileged(h.HandleAssignRole, "USERS_WRITE"))
	r.Mux.Handle("PATCH /v1/users/{id}/active", privileged(h.HandleSetActive, "USERS_WRITE"))
	r.Mux.Handle("DELETE /v1/users/{id}", privileged(h.HandleDelete, "USERS_DELETE"))

	// Single-user reads allow the owner too; ownership is checked in the
	// handler rather than the middleware.
	r.Mux.Handle("GET /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{Roles: r.RolesService}

	privileged := func(fn http.HandlerFunc, privilege string) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequirePrivilege(r.AuthorizeService.Can, privilege),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/roles", privileged(h.HandleCreate, "ROLES_WRITE"))
	r.Mux.Handle("GET /v1/roles", privileged(h.HandleList, "ROLES_READ"))
	r.Mux.Handle("GET /v1/roles/{id}", privileged(h.HandleGet, "ROLES_READ"))
	r.Mux.Handle("PATCH /v1/roles/{id}", privileged(h.HandleUpdate, "ROLES_WRITE"))
	r.Mux.Handle("DELETE /v1/roles/{id}", privileged(h.HandleDelete, "ROLES_DELETE"))

	r.Mux.Handle("GET /v1/roles/{id}/privileges", privileged(h.HandleListPrivileges, "ROLES_READ"))
	r.Mux.Handle("PUT /v1/roles/{id}/privileges/{privilegeID}", privileged(h.HandleGrant, "ROLES_WRITE"))
	r.Mux.Handle("DELETE /v1/roles/{id}/privileges/{privilegeID}", privileged(h.HandleRevoke, "ROLES_WRITE"))
}

func (r *Router) registerPrivileges() {
	h := &PrivilegesHandler{Privileges: r.PrivilegeService}

	privileged := func(fn http.HandlerFunc, privilege string) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequirePrivilege(r.AuthorizeService.Can, privilege),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/privileges", privileged(h.HandleCreate, "PRIVILEGES_WRITE"))
	r.Mux.Handle("GET /v1/privileges", privileged(h.HandleList, "PRIVILEGES_READ"))
	r.Mux.Handle("GET /v1/privileges/{id}", privileged(h.HandleGet, "PRIVILEGES_READ"))
	r.Mux.Handle("PATCH /v1/privileges/{id}", privileged(h.HandleUpdate, "PRIVILEGES_WRITE"))
	r.Mux.Handle("PATCH /v1/privileges/{id}/active", privileged(h.HandleSetActive, "PRIVILEGES_WRITE"))
	r.Mux.Handle("DELETE /v1/privileges/{id}", privileged(h.HandleDelete, "PRIVILEGES_DELETE"))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
