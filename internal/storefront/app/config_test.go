package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "SESSION_ALGORITHM", "SESSION_TTL", "SMTP_HOST", "MAIL_PROVIDER", "PORT"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, AlgHS256, cfg.SessionAlgorithm)
	assert.Equal(t, 120*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 15*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	assert.Equal(t, time.Hour, cfg.HousekeepingInterval)
	assert.Empty(t, cfg.Mail.Provider)
	assert.Equal(t, 5, cfg.RateLimits.Strict.RequestsPerWindow)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("RESET_TOKEN_TTL", "5")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("PUBLIC_URL", "https://shop.example.com/")
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("MAIL_PROVIDER", "")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "50")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,192.0.2.1")

	cfg := LoadConfig()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.ResetTokenTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "https://shop.example.com", cfg.PublicURL)
	assert.Equal(t, mailer.ProviderSMTP, cfg.Mail.Provider)
	assert.Equal(t, 50, cfg.RateLimits.Strict.RequestsPerWindow)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Env:              "dev",
			Port:             8080,
			StoreDriver:      DriverSQLite,
			SessionAlgorithm: AlgHS256,
			PasswordHasher:   "argon2id",
			SessionTTL:       time.Hour,
			ResetTokenTTL:    time.Minute,
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"unknown driver":          func(c *Config) { c.StoreDriver = "postgres" },
		"unknown algorithm":       func(c *Config) { c.SessionAlgorithm = "RS256" },
		"unknown hasher":          func(c *Config) { c.PasswordHasher = "md5" },
		"secret required in prod": func(c *Config) { c.Env = "prod" },
		"bad port":                func(c *Config) { c.Port = 0 },
		"bad ttl":                 func(c *Config) { c.SessionTTL = 0 },
		"bad trusted proxy":       func(c *Config) { c.TrustedProxies = []string{"lb.internal"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STOREFRONT_DOTENV_TEST=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("STOREFRONT_DOTENV_TEST") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("STOREFRONT_DOTENV_TEST"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, LoadDotEnv(""))
}
