package httpx

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "token"

// CookieOptions controls session cookie attributes.
type CookieOptions struct {
	// Secure forces the Secure attribute even on plain HTTP requests, which
	// is what you want behind a TLS-terminating proxy.
	Secure bool
}

func (o CookieOptions) secure(r *http.Request) bool {
	return o.Secure || r.TLS != nil
}

// SetSessionCookie stores token in an HTTP-only cookie that expires together
// with the token.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, opts CookieOptions, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   opts.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie overwrites the session cookie with an empty, already
// expired value.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the session token from the cookie, falling back to an
// "Authorization: Bearer" header for non-browser clients.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	const prefix = "Bearer "
	if authz := r.Header.Get("Authorization"); len(authz) > len(prefix) && authz[:len(prefix)] == prefix {
		return authz[len(prefix):]
	}
	return ""
}
