package http

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

// sessionIssuer starts sessions for handlers that log a user in.
type sessionIssuer struct {
	sessions *service.SessionService
	cookie   httpx.CookieOptions
}

// send mints a session token for u, sets the cookie and writes the
// AuthResponse body.
func (s *sessionIssuer) send(w http.ResponseWriter, r *http.Request, status int, u domain.User) {
	token, expiresAt, err := s.sessions.Issue(u)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.SetSessionCookie(w, r, s.cookie, token, expiresAt)
	httpx.WriteJSON(w, status, AuthResponse{Success: true, Token: token, User: u})
}
