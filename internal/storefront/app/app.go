package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/storefront/internal/storefront/http"
	"github.com/aussiebroadwan/storefront/internal/storefront/mailer"
	"github.com/aussiebroadwan/storefront/internal/storefront/metrics"
	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/internal/storefront/store/drivers/mongo"
	"github.com/aussiebroadwan/storefront/internal/storefront/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/samber/oops"
)

// BuildVersion is overridden at build time via
// -ldflags "-X github.com/aussiebroadwan/storefront/internal/storefront/app.BuildVersion=...".
var BuildVersion = "dev"

// Application encapsulates the storefront account service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	keys    SessionKeys
	hasher  cryptox.PasswordHasher
	mailer  mailer.Mailer
	metrics *metrics.Metrics

	sessionService      *service.SessionService
	accountService      *service.AccountService
	passwordService     *service.PasswordService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "storefront",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	app := &Application{
		cfg:     cfg,
		logger:  NewLogger(cfg),
		metrics: metrics.New(),
	}

	if err := app.initCrypto(); err != nil {
		return nil, err
	}

	db, err := OpenStore(ctx, cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := app.initServices(); err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = db.Close(context.Background())
		return nil, err
	}

	return app, nil
}

// Handler exposes the routed HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("storefront starting",
		"port", app.cfg.Port,
		"store", app.cfg.StoreDriver,
		"session_algorithm", app.cfg.SessionAlgorithm,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close(context.Background())
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down storefront...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(ctx); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("storefront stopped")
	return nil
}

// OpenStore connects the configured driver and applies its migrations.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		db  store.Store
		err error
	)

	switch cfg.StoreDriver {
	case DriverMongo:
		db, err = mongo.NewStore(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", cfg.StoreDriver).Wrap(err)
	}

	if err := db.ApplyMigrations(ctx); err != nil {
		_ = db.Close(context.Background())
		return nil, oops.Code("STORE_MIGRATE_FAILED").With("driver", cfg.StoreDriver).Wrap(err)
	}

	logger.Info("store ready", "driver", cfg.StoreDriver)
	return db, nil
}

func (app *Application) initCrypto() error {
	pepper := ""
	if app.cfg.PasswordHasher == cryptox.HasherArgon2id || app.cfg.PasswordHasher == "" {
		p, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
		if err != nil {
			return oops.Code("PEPPER_FAILED").With("path", app.cfg.PepperFile).Wrap(err)
		}
		pepper = p
	}

	hasher, err := cryptox.NewHasher(app.cfg.PasswordHasher, pepper)
	if err != nil {
		return oops.Code("HASHER_FAILED").Wrap(err)
	}
	app.hasher = hasher

	keys, err := InitSessionKeys(app.cfg, app.logger)
	if err != nil {
		return oops.Code("SESSION_KEYS_FAILED").Wrap(err)
	}
	app.keys = keys
	return nil
}

func (app *Application) initServices() error {
	m, err := mailer.New(app.cfg.Mail, app.logger)
	if err != nil {
		return oops.Code("MAILER_FAILED").Wrap(err)
	}
	app.mailer = m

	app.sessionService = &service.SessionService{
		Signer:   app.keys.Signer,
		Verifier: app.keys.Verifier,
		Issuer:   app.cfg.SessionIssuer,
		TTL:      app.cfg.SessionTTL,
	}
	app.accountService = &service.AccountService{
		Store:   app.db,
		Hasher:  app.hasher,
		Metrics: app.metrics,
	}
	app.passwordService = &service.PasswordService{
		Store:    app.db,
		Hasher:   app.hasher,
		Mailer:   app.mailer,
		ResetTTL: app.cfg.ResetTokenTTL,
		Metrics:  app.metrics,
	}
	app.userService = &service.UserService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) initHTTP() error {
	proxies, err := httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	router := httpapi.NewRouter(app.db, BuildVersion, app.logger)

	router.SessionService = app.sessionService
	router.AccountService = app.accountService
	router.PasswordService = app.passwordService
	router.UserService = app.userService
	router.Metrics = app.metrics
	router.Limits = app.cfg.RateLimits
	router.Cookie = httpx.CookieOptions{Secure: app.cfg.CookieSecure}
	router.PublicURL = app.cfg.PublicURL
	router.Proxies = proxies
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
