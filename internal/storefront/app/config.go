package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/mailer"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Session signing algorithms.
const (
	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	StoreDriver   string // mongo or sqlite (default: mongo)
	MongoURL      string // default: mongodb://localhost:27017
	MongoDatabase string // default: storefront
	DatabaseFile  string // SQLite file (default: storefront.db)

	SessionAlgorithm string        // HS256 or EdDSA (default: HS256)
	SessionSecret    string        // HS256 shared secret, at least 32 bytes
	SessionKeyFile   string        // EdDSA PKCS8 PEM private key (default: session_ed25519.pem)
	SessionIssuer    string        // default: storefront
	SessionTTL       time.Duration // default: 120h
	CookieSecure     bool          // force the Secure cookie attribute (default: false)

	ResetTokenTTL  time.Duration // default: 15m
	PasswordHasher string        // argon2id or bcrypt (default: argon2id)
	PepperFile     string        // Argon2id pepper file (default: pepper)
	PublicURL      string        // origin used in reset links; derived from the request when empty

	Mail mailer.Config // MAIL_PROVIDER is log or smtp (default: log, or smtp when SMTP_HOST is set)

	ShutdownGracePeriod  time.Duration // default: 10s
	HousekeepingInterval time.Duration // default: 1h

	RateLimits     httpx.RateLimitProfiles
	TrustedProxies []string // comma separated CIDRs or addresses allowed to set X-Forwarded-* (default: none)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LoadConfig() Config {
	cfg := Config{
		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		StoreDriver:   strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverMongo)),
		MongoURL:      getEnvOrDefault("MONGO_URL", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "storefront"),
		DatabaseFile:  getEnvOrDefault("DATABASE_FILE", "storefront.db"),

		SessionAlgorithm: getEnvOrDefault("SESSION_ALGORITHM", AlgHS256),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		SessionKeyFile:   getEnvOrDefault("SESSION_KEY_FILE", "session_ed25519.pem"),
		SessionIssuer:    getEnvOrDefault("SESSION_ISSUER", "storefront"),
		SessionTTL:       getEnvDurationOrDefault("SESSION_TTL", 5*24*time.Hour),
		CookieSecure:     getEnvBoolOrDefault("COOKIE_SECURE", false),

		ResetTokenTTL:  getEnvDurationOrDefault("RESET_TOKEN_TTL", 15*time.Minute),
		PasswordHasher: getEnvOrDefault("PASSWORD_HASHER", cryptox.HasherArgon2id),
		PepperFile:     getEnvOrDefault("PEPPER_FILE", "pepper"),
		PublicURL:      strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		RateLimits:     httpx.RateLimitProfilesFromEnv(),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
	}

	cfg.Mail = mailer.Config{
		Provider: os.Getenv("MAIL_PROVIDER"),
		From:     getEnvOrDefault("SMTP_FROM", "no-reply@storefront.local"),
		SMTP: mailer.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvIntOrDefault("SMTP_PORT", mailer.DefaultSMTPPort),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
	}
	if cfg.Mail.Provider == "" && cfg.Mail.SMTP.Host != "" {
		cfg.Mail.Provider = mailer.ProviderSMTP
	}

	return cfg
}

// IsDev reports whether the service runs in the development environment.
func (c Config) IsDev() bool { return strings.EqualFold(c.Env, "dev") }

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverMongo, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}

	switch c.SessionAlgorithm {
	case AlgHS256:
		if c.SessionSecret == "" && !c.IsDev() {
			errs = append(errs, errors.New("SESSION_SECRET: required outside dev"))
		}
	case AlgEdDSA:
		if c.SessionKeyFile == "" {
			errs = append(errs, errors.New("SESSION_KEY_FILE: required for EdDSA"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_ALGORITHM: unsupported algorithm %q", c.SessionAlgorithm))
	}

	switch strings.ToLower(c.PasswordHasher) {
	case cryptox.HasherArgon2id, cryptox.HasherBcrypt:
	default:
		errs = append(errs, fmt.Errorf("PASSWORD_HASHER: unknown hasher %q", c.PasswordHasher))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", c.Port))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL: must be positive"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_TTL: must be positive"))
	}

	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}

	return errors.Join(errs...)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
