package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestHS256SignAndVerify(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	claims := jwtx.NewSessionClaims("user-1", "admin", exampleIssuer, time.Hour, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	var verifier jwtx.Verifier = jwtx.NewVerifierHS256(testSecret, exampleIssuer)
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", parsed.Subject)
	require.Equal(t, "admin", parsed.Role)
}

func TestHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.Error(t, err)
}

func TestHS256VerifyFailures(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	valid, err := signer.Sign(jwtx.NewSessionClaims("user-1", "user", exampleIssuer, time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	expired, err := signer.Sign(jwtx.NewSessionClaims("user-1", "user", exampleIssuer, time.Minute, time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	noSubject, err := signer.Sign(jwtx.NewSessionClaims("", "user", exampleIssuer, time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		verifier jwtx.Verifier
		wantErr  error
	}{
		{"wrong secret", valid, jwtx.NewVerifierHS256([]byte("ffffffffffffffffffffffffffffffff"), exampleIssuer), jwtx.ErrInvalidSig},
		{"wrong issuer", valid, jwtx.NewVerifierHS256(testSecret, "other"), jwtx.ErrIssuer},
		{"expired", expired, jwtx.NewVerifierHS256(testSecret, exampleIssuer), jwtx.ErrExpired},
		{"malformed", "not.a.jwt", jwtx.NewVerifierHS256(testSecret, exampleIssuer), jwtx.ErrMalformed},
		{"missing subject", noSubject, jwtx.NewVerifierHS256(testSecret, exampleIssuer), jwtx.ErrInvalidClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
