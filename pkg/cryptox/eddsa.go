package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// pemTypePKCS8 is the block type written for and required of session keys.
const pemTypePKCS8 = "PRIVATE KEY"

// ErrNotEd25519 is returned when a PEM file holds a key of another type.
var ErrNotEd25519 = errors.New("cryptox: key is not Ed25519")

// NewEd25519PEM returns a fresh Ed25519 private key encoded as a PKCS8 PEM
// block, the on-disk format of SESSION_KEY_FILE.
func NewEd25519PEM() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate Ed25519 key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: encode PKCS8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS8, Bytes: der}), nil
}

// ParseEd25519PEM decodes the first PEM block in data as a PKCS8 Ed25519
// private key.
func ParseEd25519PEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("cryptox: no PEM block found")
	}
	if block.Type != pemTypePKCS8 {
		return nil, fmt.Errorf("cryptox: PEM block %q, want %q", block.Type, pemTypePKCS8)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decode PKCS8: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotEd25519, parsed)
	}
	return key, nil
}
