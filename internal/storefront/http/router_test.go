package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/mailer"
	"github.com/aussiebroadwan/storefront/internal/storefront/metrics"
	"github.com/aussiebroadwan/storefront/internal/storefront/service"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/internal/storefront/store/drivers/sqlite"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testIssuer = "storefront-test"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// outbox records sent mail and can be switched to fail.
type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return o.err
}

func (o *outbox) last(t *testing.T) mailer.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

type testEnv struct {
	srv    *httptest.Server
	store  store.Store
	outbox *outbox
}

func generous() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
}

func newTestEnv(t *testing.T, limits *httpx.RateLimitProfiles) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	require.NoError(t, st.ApplyMigrations(context.Background()))

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	hasher := cryptox.NewBcryptHasher(bcrypt.MinCost)
	box := &outbox{}
	m := metrics.New()

	router := NewRouter(st, "test", slogx.Discard())
	router.SessionService = &service.SessionService{
		Signer:   signer,
		Verifier: jwtx.NewVerifierHS256(testSecret, testIssuer),
		Issuer:   testIssuer,
		TTL:      time.Hour,
	}
	router.AccountService = &service.AccountService{Store: st, Hasher: hasher, Metrics: m}
	router.PasswordService = &service.PasswordService{Store: st, Hasher: hasher, Mailer: box, Metrics: m}
	router.UserService = &service.UserService{Store: st}
	router.Metrics = m
	router.Limits = httpx.RateLimitProfiles{Strict: generous(), Moderate: generous(), Lenient: generous()}
	if limits != nil {
		router.Limits = *limits
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: st, outbox: box}
}

// client returns a browser-like client with its own cookie jar.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type result struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body any, header ...string) result {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func (e *testEnv) register(t *testing.T, c *http.Client, name, email string) result {
	t.Helper()
	res := e.do(t, c, http.MethodPost, "/api/v1/register", map[string]string{
		"name": name, "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	return res
}

func sessionCookie(cookies []*http.Cookie) *http.Cookie {
	for _, c := range cookies {
		if c.Name == httpx.SessionCookieName {
			return c
		}
	}
	return nil
}

func userID(t *testing.T, res result) string {
	t.Helper()
	u, ok := res.body["user"].(map[string]any)
	require.True(t, ok, "response has no user: %v", res.body)
	id, _ := u["_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestRegisterLoginLogout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	c := env.client(t)

	res := env.register(t, c, "Alice", "Alice@Example.com")
	assert.Equal(t, true, res.body["success"])
	assert.NotEmpty(t, res.body["token"])

	cookie := sessionCookie(res.cookies)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, res.body["token"], cookie.Value)

	user := res.body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "PasswordHash")

	me := env.do(t, c, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, me.status)
	assert.Equal(t, "alice@example.com", me.body["user"].(map[string]any)["email"])

	logout := env.do(t, c, http.MethodGet, "/api/v1/logout", nil)
	require.Equal(t, http.StatusOK, logout.status)
	assert.Equal(t, "Logged Out", logout.body["message"])
	cleared := sessionCookie(logout.cookies)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	me = env.do(t, c, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusUnauthorized, me.status)
	assert.Equal(t, "Please Login to access this resource", me.body["message"])
	assert.Equal(t, false, me.body["success"])

	// A fresh login with a differently cased email works.
	login := env.do(t, c, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "ALICE@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, login.status)
	require.NotNil(t, sessionCookie(login.cookies))
}

func TestRegisterAvatarForms(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	bare := env.do(t, env.client(t), http.MethodPost, "/api/v1/register", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": "secret1",
		"avatar": "https://cdn.test/alice.png",
	})
	require.Equal(t, http.StatusCreated, bare.status, bare.body)
	avatar := bare.body["user"].(map[string]any)["avatar"].(map[string]any)
	assert.Equal(t, "https://cdn.test/alice.png", avatar["url"])
	assert.Equal(t, "", avatar["public_id"])

	obj := env.do(t, env.client(t), http.MethodPost, "/api/v1/register", map[string]any{
		"name": "Bob", "email": "bob@example.com", "password": "secret1",
		"avatar": map[string]string{"public_id": "avatars/bob", "url": "https://cdn.test/bob.png"},
	})
	require.Equal(t, http.StatusCreated, obj.status, obj.body)
	avatar = obj.body["user"].(map[string]any)["avatar"].(map[string]any)
	assert.Equal(t, "avatars/bob", avatar["public_id"])
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	c := env.client(t)
	env.register(t, c, "Alice", "alice@example.com")

	res := env.do(t, c, http.MethodPost, "/api/v1/login", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Please Enter Email & Password", res.body["message"])

	wrong := env.do(t, c, http.MethodPost, "/api/v1/login", map[string]string{"email": "alice@example.com", "password": "nope"})
	unknown := env.do(t, c, http.MethodPost, "/api/v1/login", map[string]string{"email": "bob@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Equal(t, http.StatusUnauthorized, unknown.status)
	assert.Equal(t, wrong.body, unknown.body)
	assert.Nil(t, sessionCookie(wrong.cookies))

	dup := env.do(t, c, http.MethodPost, "/api/v1/register", map[string]string{
		"name": "Again", "email": "alice@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, dup.status)
	assert.Equal(t, "Duplicate email Entered", dup.body["message"])

	bad := env.do(t, c, http.MethodPost, "/api/v1/login", nil, "Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, bad.status)
}

func TestForgotAndResetPassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	c := env.client(t)
	env.register(t, c, "Alice", "alice@example.com")

	missing := env.do(t, c, http.MethodPost, "/api/v1/password/forgot", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, missing.status)
	assert.Equal(t, "User not found", missing.body["message"])

	res := env.do(t, c, http.MethodPost, "/api/v1/password/forgot", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "Email sent to alice@example.com successfully", res.body["message"])

	msg := env.outbox.last(t)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, service.ResetEmailSubject, msg.Subject)

	prefix := env.srv.URL + "/api/v1/password/reset/"
	require.Contains(t, msg.Body, prefix)
	_, rest, _ := strings.Cut(msg.Body, prefix)
	token, _, _ := strings.Cut(rest, " ")

	mismatch := env.do(t, env.client(t), http.MethodPut, "/api/v1/password/reset/"+token, map[string]string{
		"password": "newsecret", "confirmPassword": "other",
	})
	assert.Equal(t, http.StatusBadRequest, mismatch.status)
	assert.Equal(t, "Password does not match with confirm password", mismatch.body["message"])

	other := env.client(t)
	reset := env.do(t, other, http.MethodPut, "/api/v1/password/reset/"+token, map[string]string{
		"password": "newsecret", "confirmPassword": "newsecret",
	})
	require.Equal(t, http.StatusOK, reset.status, reset.body)
	require.NotNil(t, sessionCookie(reset.cookies))

	// The reset logged the new client in.
	me := env.do(t, other, http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusOK, me.status)

	again := env.do(t, env.client(t), http.MethodPut, "/api/v1/password/reset/"+token, map[string]string{
		"password": "third-one", "confirmPassword": "third-one",
	})
	assert.Equal(t, http.StatusBadRequest, again.status)
	assert.Equal(t, "Reset Password Token is invalid or has been expired", again.body["message"])

	login := env.do(t, env.client(t), http.MethodPost, "/api/v1/login", map[string]string{
		"email": "alice@example.com", "password": "newsecret",
	})
	assert.Equal(t, http.StatusOK, login.status)
}

func TestForgotPasswordDeliveryFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	c := env.client(t)
	id := userID(t, env.register(t, c, "Alice", "alice@example.com"))
	env.outbox.err = assert.AnError

	res := env.do(t, c, http.MethodPost, "/api/v1/password/forgot", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.Equal(t, "Email could not be sent", res.body["message"])

	u, err := env.store.Users().GetUserByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, u.ResetTokenHash)
}

func TestUpdatePassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	c := env.client(t)
	env.register(t, c, "Alice", "alice@example.com")

	unauth := env.do(t, env.client(t), http.MethodPut, "/api/v1/password/update", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, unauth.status)

	wrong := env.do(t, c, http.MethodPut, "/api/v1/password/update", map[string]string{
		"oldPassword": "nope", "newPassword": "newsecret", "confirmPassword": "newsecret",
	})
	assert.Equal(t, http.StatusBadRequest, wrong.status)
	assert.Equal(t, "Old Password is incorrect", wrong.body["message"])

	ok := env.do(t, c, http.MethodPut, "/api/v1/password/update", map[string]string{
		"oldPassword": "secret1", "newPassword": "newsecret", "confirmPassword": "newsecret",
	})
	require.Equal(t, http.StatusOK, ok.status, ok.body)
	require.NotNil(t, sessionCookie(ok.cookies))
}

func TestProfileAndAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.client(t)
	aliceRes := env.register(t, alice, "Alice", "alice@example.com")
	aliceToken := aliceRes.body["token"].(string)
	aliceID := userID(t, aliceRes)

	admin := env.client(t)
	adminID := userID(t, env.register(t, admin, "Root", "root@example.com"))
	role := domain.RoleAdmin
	_, err := env.store.Users().UpdateProfile(ctx, adminID, store.ProfileUpdate{Role: &role})
	require.NoError(t, err)

	t.Run("profile update", func(t *testing.T) {
		res := env.do(t, alice, http.MethodPut, "/api/v1/me/update", map[string]string{"name": "Alice B"})
		require.Equal(t, http.StatusOK, res.status, res.body)
		assert.Equal(t, true, res.body["success"])

		me := env.do(t, alice, http.MethodGet, "/api/v1/me", nil)
		assert.Equal(t, "Alice B", me.body["user"].(map[string]any)["name"])
	})

	t.Run("admin routes need a session and the admin role", func(t *testing.T) {
		none := env.do(t, env.client(t), http.MethodGet, "/api/v1/admin/users", nil)
		assert.Equal(t, http.StatusUnauthorized, none.status)

		forbidden := env.do(t, alice, http.MethodGet, "/api/v1/admin/users", nil)
		assert.Equal(t, http.StatusForbidden, forbidden.status)
		assert.Equal(t, "Role: user is not allowed to access this resource", forbidden.body["message"])
	})

	t.Run("admin can manage users", func(t *testing.T) {
		list := env.do(t, admin, http.MethodGet, "/api/v1/admin/users", nil)
		require.Equal(t, http.StatusOK, list.status)
		assert.Len(t, list.body["users"], 2)

		get := env.do(t, admin, http.MethodGet, "/api/v1/admin/user/"+aliceID, nil)
		require.Equal(t, http.StatusOK, get.status)

		missing := env.do(t, admin, http.MethodGet, "/api/v1/admin/user/nope", nil)
		assert.Equal(t, http.StatusNotFound, missing.status)
		assert.Equal(t, "User does not exist with Id: nope", missing.body["message"])

		badRole := env.do(t, admin, http.MethodPut, "/api/v1/admin/user/"+aliceID, map[string]string{"role": "root"})
		assert.Equal(t, http.StatusBadRequest, badRole.status)

		del := env.do(t, admin, http.MethodDelete, "/api/v1/admin/user/"+aliceID, nil)
		require.Equal(t, http.StatusOK, del.status)
		assert.Equal(t, "User deleted successfully", del.body["message"])

		// The deleted user's still-unexpired token no longer authenticates.
		me := env.do(t, env.client(t), http.MethodGet, "/api/v1/me", nil, "Authorization", "Bearer "+aliceToken)
		assert.Equal(t, http.StatusUnauthorized, me.status)
	})
}

func TestBearerTokenFallback(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	res := env.register(t, env.client(t), "Alice", "alice@example.com")

	me := env.do(t, &http.Client{}, http.MethodGet, "/api/v1/me", nil,
		"Authorization", "Bearer "+res.body["token"].(string))
	assert.Equal(t, http.StatusOK, me.status)

	tampered := env.do(t, &http.Client{}, http.MethodGet, "/api/v1/me", nil,
		"Authorization", "Bearer "+res.body["token"].(string)+"x")
	assert.Equal(t, http.StatusUnauthorized, tampered.status)
}

func TestStrictRateLimit(t *testing.T) {
	t.Parallel()
	strict := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	env := newTestEnv(t, &httpx.RateLimitProfiles{Strict: strict, Moderate: generous(), Lenient: generous()})
	c := env.client(t)

	for range 2 {
		res := env.do(t, c, http.MethodPost, "/api/v1/login", map[string]string{"email": "a@example.com", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, res.status)
	}
	res := env.do(t, c, http.MethodPost, "/api/v1/login", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Equal(t, "Too many requests. Please try again later.", res.body["message"])
}

func TestStrictRateLimit_IgnoresClientForwardedFor(t *testing.T) {
	t.Parallel()
	strict := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	env := newTestEnv(t, &httpx.RateLimitProfiles{Strict: strict, Moderate: generous(), Lenient: generous()})
	c := env.client(t)

	body := map[string]string{"email": "a@example.com", "password": "x"}
	for i, hop := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		res := env.do(t, c, http.MethodPost, "/api/v1/login", body, "X-Forwarded-For", hop)
		if i < 2 {
			assert.Equal(t, http.StatusUnauthorized, res.status)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, res.status)
	}
}

func TestResetOrigin(t *testing.T) {
	t.Parallel()
	trust, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	newReq := func(remote string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "http://shop.example.com/api/v1/password/forgot", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-Proto", "https")
		return req
	}

	h := &PasswordHandler{Proxies: trust}
	assert.Equal(t, "https://shop.example.com/api/v1", h.resetOrigin(newReq("10.1.2.3:4000")))
	assert.Equal(t, "http://shop.example.com/api/v1", h.resetOrigin(newReq("192.0.2.9:4000")))

	h.PublicURL = "https://store.example.com"
	assert.Equal(t, "https://store.example.com", h.resetOrigin(newReq("192.0.2.9:4000")))
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	c := env.client(t)

	live := env.do(t, c, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, live.status)
	assert.Equal(t, "ok", live.body["status"])

	ready := env.do(t, c, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, ready.status)
	assert.Equal(t, "ok", ready.body["checks"].(map[string]any)["database"])

	resp, err := c.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `storefront_http_requests_total{method="GET",route="GET /livez",status="200"}`)
}
