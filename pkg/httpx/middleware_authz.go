package httpx

import (
	"fmt"
	"net/http"
	"slices"
)

// RequireRole lets the request through only when the caller's role is one of
// roles. It must run after SessionMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			}

			if !slices.Contains(roles, p.Role) {
				WriteError(w, http.StatusForbidden,
					fmt.Sprintf("Role: %s is not allowed to access this resource", p.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
