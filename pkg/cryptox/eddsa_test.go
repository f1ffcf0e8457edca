package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519PEMRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := cryptox.NewEd25519PEM()
	require.NoError(t, err)

	key, err := cryptox.ParseEd25519PEM(data)
	require.NoError(t, err)
	assert.Len(t, key, ed25519.PrivateKeySize)

	sig := ed25519.Sign(key, []byte("session"))
	assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), []byte("session"), sig))

	other, err := cryptox.NewEd25519PEM()
	require.NoError(t, err)
	assert.NotEqual(t, data, other, "each call must produce a new key")
}

func TestParseEd25519PEMRejects(t *testing.T) {
	t.Parallel()

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalPKCS8PrivateKey(ecKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not pem", []byte("-----nothing here-----")},
		{"wrong block type", pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecDER})},
		{"garbage der", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cryptox.ParseEd25519PEM(tt.data)
			require.Error(t, err)
		})
	}

	_, err = cryptox.ParseEd25519PEM(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: ecDER}))
	require.ErrorIs(t, err, cryptox.ErrNotEd25519)
}
