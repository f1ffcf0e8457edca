package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// MsgLoginRequired is returned to callers without a usable session.
const MsgLoginRequired = "Please Login to access this resource"

// MsgInternalError is returned when the principal cannot be resolved for a
// reason other than the caller being unknown.
const MsgInternalError = "Internal Server Error"

// ErrNoPrincipal is returned by a PrincipalResolver when the token subject no
// longer exists. The middleware answers it with 401; any other resolver error
// is a server failure and answers 500.
var ErrNoPrincipal = errors.New("httpx: principal not found")

// PrincipalResolver maps verified claims to the current caller, typically by
// loading the user from storage.
type PrincipalResolver func(ctx context.Context, claims jwtx.Claims) (Principal, error)

// SessionMiddleware authenticates requests by their session token and
// attaches the resolved Principal to the context. A missing or invalid token,
// or an unknown subject, answers 401 and the wrapped handler never runs.
func SessionMiddleware(v jwtx.Verifier, resolve PrincipalResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := SessionToken(r)
			if raw == "" {
				WriteError(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("session token rejected", "err", err)
				WriteError(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			}

			p, err := resolve(ctx, claims)
			switch {
			case errors.Is(err, ErrNoPrincipal):
				log.Info("session principal not found", "sub", claims.Subject)
				WriteError(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			case err != nil:
				log.Error("session principal lookup failed", "sub", claims.Subject, "err", err)
				WriteError(w, http.StatusInternalServerError, MsgInternalError)
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = slogx.With(ctx, "user_id", p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
