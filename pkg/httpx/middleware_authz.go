package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/nimbus-labs/identity/pkg/slogx"
)

// RequireRole the caller must hold one of the listed roles.
func RequireRole(allowed ...string) Middleware {
	want := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if _, ok := want[role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			writeForbidden(w, allowed...)
		})
	}
}

// PrivilegeChecker reports whether the given role grants the named privilege.
// It is resolved at request time so role/privilege edits take effect without
// re-issuing tokens.
type PrivilegeChecker func(ctx context.Context, role, privilege string) (bool, error)

// RequirePrivilege the caller's role must grant the named privilege.
func RequirePrivilege(check PrivilegeChecker, privilege string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := RoleFromContext(ctx)

			ok, err := check(ctx, role, privilege)
			if err != nil {
				slogx.FromContext(ctx).Error("privilege check failed", "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if !ok {
				writeForbidden(w, privilege)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RFC 6750-compliant error response for insufficient permissions.
func writeForbidden(w http.ResponseWriter, required ...string) {
	w.Header().
		Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("insufficient_permissions"))
}
