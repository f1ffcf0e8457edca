package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
)

// SessionKeys is the signer/verifier pair for session tokens.
type SessionKeys struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
}

// InitSessionKeys builds the session token signer for the configured
// algorithm.
//
//   - HS256 signs with SESSION_SECRET. In dev an empty secret is replaced by
//     a random one, so sessions do not survive a restart.
//   - EdDSA loads a PKCS8 PEM key from SESSION_KEY_FILE. In dev a missing
//     file is generated.
func InitSessionKeys(cfg Config, logger *slog.Logger) (SessionKeys, error) {
	switch cfg.SessionAlgorithm {
	case AlgHS256:
		secret := []byte(cfg.SessionSecret)
		if len(secret) == 0 {
			if !cfg.IsDev() {
				return SessionKeys{}, errors.New("SESSION_SECRET is required")
			}
			raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return SessionKeys{}, fmt.Errorf("generate session secret: %w", err)
			}
			secret = []byte(raw)
			logger.Warn("SESSION_SECRET not set, using a random secret; sessions end on restart")
		}

		signer, err := jwtx.NewSignerHS256(secret)
		if err != nil {
			return SessionKeys{}, err
		}
		logger.Info("session signer initialized", "algorithm", signer.Alg())
		return SessionKeys{Signer: signer, Verifier: jwtx.NewVerifierHS256(secret, cfg.SessionIssuer)}, nil

	case AlgEdDSA:
		pemKey, err := loadOrGenerateEdDSAKey(cfg.SessionKeyFile, cfg.IsDev(), logger)
		if err != nil {
			return SessionKeys{}, err
		}
		signer, err := jwtx.NewSignerEdDSA("", pemKey)
		if err != nil {
			return SessionKeys{}, fmt.Errorf("load EdDSA key: %w", err)
		}
		if err := signer.Validate(); err != nil {
			return SessionKeys{}, err
		}
		logger.Info("session signer initialized", "algorithm", signer.Alg(), "key_file", cfg.SessionKeyFile)
		return SessionKeys{Signer: signer, Verifier: signer.Verifier(cfg.SessionIssuer)}, nil

	default:
		return SessionKeys{}, fmt.Errorf("unsupported session algorithm %q", cfg.SessionAlgorithm)
	}
}

func loadOrGenerateEdDSAKey(path string, generate bool, logger *slog.Logger) ([]byte, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if err == nil {
		if _, err := cryptox.ParseEd25519PEM(data); err != nil {
			return nil, fmt.Errorf("session key %s: %w", path, err)
		}
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !generate {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	data, err = cryptox.NewEd25519PEM()
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create session key dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write session key: %w", err)
	}

	logger.Warn("generated a new EdDSA session key", "path", path)
	return data, nil
}
