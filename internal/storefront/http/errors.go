package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

// writeError answers with the status and message of a *domain.Error. Any
// other error is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		httpx.WriteError(w, derr.Status, derr.Message)
		return
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	httpx.WriteError(w, domain.ErrInternal.Status, domain.ErrInternal.Message)
}

// decode reads the JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("bad request body", "err", err)
		writeError(w, r, domain.ErrInvalidInput.WithMessage("Request body must be valid JSON"))
		return false
	}
	return true
}

// currentUser returns the account resolved by the session middleware.
func currentUser(r *http.Request) (domain.User, bool) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		return domain.User{}, false
	}
	u, ok := p.User.(domain.User)
	return u, ok
}
