package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/metrics"
	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"

	_ "github.com/aussiebroadwan/storefront/api/storefront" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// APIPrefix is the mount point of every account route.
const APIPrefix = "/api/v1"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	SessionService  *service.SessionService
	AccountService  *service.AccountService
	PasswordService *service.PasswordService
	UserService     *service.UserService

	Metrics   *metrics.Metrics
	Limits    httpx.RateLimitProfiles
	Cookie    httpx.CookieOptions
	PublicURL string

	// Proxies may set X-Forwarded-For and X-Forwarded-Proto. The zero value
	// trusts no one.
	Proxies httpx.ProxyTrust
}

func NewRouter(st store.Store, buildVersion string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		Limits:       httpx.DefaultRateLimitProfiles(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerPassword()
	r.registerProfile()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Storefront Account API
//	@version		1.0.0
//	@description	Account service of the storefront: registration, cookie sessions, password recovery and user administration.
//	@description
//	@description	Sessions are signed JWTs carried in the HTTP-only "token" cookie. Non-browser clients may send the same token as a Bearer header.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/storefront
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						token
//	@description				Session token set by login, register and password reset.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern, wrapped by mws and instrumented with the
// pattern as its metrics route label.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	r.Mux.Handle(pattern, r.Metrics.Instrument(pattern, httpx.Chain(h, mws...)))
}

func (r *Router) session() httpx.Middleware {
	return httpx.SessionMiddleware(r.SessionService, r.UserService.ResolvePrincipal)
}

func (r *Router) newIssuer() *sessionIssuer {
	return &sessionIssuer{sessions: r.SessionService, cookie: r.Cookie}
}

func (r *Router) registerAccount() {
	h := &AccountHandler{AccountService: r.AccountService, issuer: r.newIssuer()}

	// Credential endpoints - strict rate limit by IP (brute force prevention)
	r.handle("POST "+APIPrefix+"/register", http.HandlerFunc(h.HandleRegister),
		r.Proxies.RateLimitByIP(r.Limits.Strict),
	)
	r.handle("POST "+APIPrefix+"/login", http.HandlerFunc(h.HandleLogin),
		r.Proxies.RateLimitByIP(r.Limits.Strict),
	)
	r.handle("GET "+APIPrefix+"/logout", http.HandlerFunc(h.HandleLogout),
		r.Proxies.RateLimitByIP(r.Limits.Lenient),
	)
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{
		PasswordService: r.PasswordService,
		PublicURL:       r.PublicURL,
		Proxies:         r.Proxies,
		issuer:          r.newIssuer(),
	}

	r.handle("POST "+APIPrefix+"/password/forgot", http.HandlerFunc(h.HandleForgot),
		r.Proxies.RateLimitByIP(r.Limits.Strict),
	)
	r.handle("PUT "+APIPrefix+"/password/reset/{token}", http.HandlerFunc(h.HandleReset),
		r.Proxies.RateLimitByIP(r.Limits.Strict),
	)

	// Authenticated - moderate rate limit by user
	r.handle("PUT "+APIPrefix+"/password/update", http.HandlerFunc(h.HandleUpdate),
		r.session(),
		r.Proxies.RateLimitByUser(r.Limits.Moderate),
	)
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{UserService: r.UserService}

	r.handle("GET "+APIPrefix+"/me", http.HandlerFunc(h.HandleMe),
		r.session(),
		r.Proxies.RateLimitByUser(r.Limits.Lenient),
	)
	r.handle("PUT "+APIPrefix+"/me/update", http.HandlerFunc(h.HandleUpdate),
		r.session(),
		r.Proxies.RateLimitByUser(r.Limits.Moderate),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{UserService: r.UserService}

	admin := func(pattern string, fn http.HandlerFunc) {
		r.handle(pattern, fn,
			r.session(),
			httpx.RequireRole(string(domain.RoleAdmin)),
			r.Proxies.RateLimitByUser(r.Limits.Moderate),
		)
	}

	admin("GET "+APIPrefix+"/admin/users", h.HandleList)
	admin("GET "+APIPrefix+"/admin/user/{id}", h.HandleGet)
	admin("PUT "+APIPrefix+"/admin/user/{id}", h.HandleUpdate)
	admin("DELETE "+APIPrefix+"/admin/user/{id}", h.HandleDelete)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.handle("GET /livez", LivezHandler(r.startTime, r.buildVersion),
		r.Proxies.RateLimitByIP(r.Limits.Lenient),
	)
	r.handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store),
		r.Proxies.RateLimitByIP(r.Limits.Lenient),
	)
}
