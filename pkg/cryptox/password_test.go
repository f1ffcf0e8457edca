package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name    string
		hasher  string
		want    any
		wantErr bool
	}{
		{"default", "", &Argon2idHasher{}, false},
		{"argon2id", "argon2id", &Argon2idHasher{}, false},
		{"case insensitive", "BCRYPT", &BcryptHasher{}, false},
		{"unknown", "md5", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.hasher, "pepper")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tt.want, h)
		})
	}
}

func TestArgon2idHasher_Hash(t *testing.T) {
	h := NewArgon2idHasher("test-pepper")

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should be in PHC format")

	parts := strings.Split(hash, "$")
	require.Len(t, parts, 6, "PHC hash should have 6 parts")
	require.Equal(t, "m=19456,t=2,p=1", parts[3])
	require.NotEmpty(t, parts[4], "salt should not be empty")
	require.NotEmpty(t, parts[5], "hash should not be empty")

	_, err = h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestArgon2idHasher_UniqueSalts(t *testing.T) {
	h := NewArgon2idHasher("")

	hash1, err := h.Hash("samepassword")
	require.NoError(t, err)
	hash2, err := h.Hash("samepassword")
	require.NoError(t, err)
	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")

	for _, hash := range []string{hash1, hash2} {
		ok, err := h.Verify("samepassword", hash)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestArgon2idHasher_Verify(t *testing.T) {
	h := NewArgon2idHasher("test-pepper")
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "correct-password", true},
		{"case difference", "Correct-Password", false},
		{"extra space", "correct-password ", false},
		{"empty password", "", false},
		{"prefix", "correct-passwor", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify(tt.password, hash)
			require.NoError(t, err)
			require.Equal(t, tt.want, ok)
		})
	}
}

func TestArgon2idHasher_PepperMatters(t *testing.T) {
	hash, err := NewArgon2idHasher("pepper-a").Hash("secret1")
	require.NoError(t, err)

	ok, err := NewArgon2idHasher("pepper-b").Verify("secret1", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestArgon2idHasher_InvalidHashFormat(t *testing.T) {
	h := NewArgon2idHasher("")

	tests := []struct {
		name        string
		invalidHash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("test-password", tt.invalidHash)
			require.ErrorIs(t, err, ErrInvalidHashFormat)
			require.False(t, ok)
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2a$04$"))

	ok, err := h.Verify("secret1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("secret2", hash)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = h.Verify("secret1", "not-a-bcrypt-hash")
	require.ErrorIs(t, err, ErrInvalidHashFormat)

	_, err = h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	require.Equal(t, 10, NewBcryptHasher(0).cost)
	require.Equal(t, 10, NewBcryptHasher(99).cost)
	require.Equal(t, 12, NewBcryptHasher(12).cost)
}
