package service

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/samber/oops"
)

// SessionService mints and checks the stateless session tokens carried in
// the "token" cookie.
type SessionService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	TTL      time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue signs a session token for u and returns it with its expiry.
func (s *SessionService) Issue(u domain.User) (string, time.Time, error) {
	if u.ID == "" {
		return "", time.Time{}, errors.New("service: cannot issue a session without a user id")
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(u.ID, string(u.Role), s.Issuer, ttl, s.now())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, oops.Code("SESSION_SIGN_FAILED").With("user_id", u.ID).Wrap(err)
	}
	return token, claims.ExpiresAtTime(), nil
}

// Verify checks signature, issuer and expiry.
func (s *SessionService) Verify(token string) (jwtx.Claims, error) {
	return s.Verifier.Verify(token)
}
