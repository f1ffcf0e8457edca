package httpx

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"golang.org/x/time/rate"
)

// MsgTooManyRequests is the body message of 429 responses.
const MsgTooManyRequests = "Too many requests. Please try again later."

// RateLimitConfig is a token bucket: RequestsPerWindow tokens refill evenly
// over Window, and at most Burst can be spent at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Built-in profiles.
var (
	// StrictLimit guards credential endpoints against guessing.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit is for authenticated writes.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}

	// LenientLimit is for reads, logout and health checks.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100}
)

// RateLimitProfiles groups the limits a router applies.
type RateLimitProfiles struct {
	Strict   RateLimitConfig
	Moderate RateLimitConfig
	Lenient  RateLimitConfig
}

func DefaultRateLimitProfiles() RateLimitProfiles {
	return RateLimitProfiles{Strict: StrictLimit, Moderate: ModerateLimit, Lenient: LenientLimit}
}

// RateLimitProfilesFromEnv starts from the defaults and applies
// RATELIMIT_<PROFILE>_REQUESTS, RATELIMIT_<PROFILE>_WINDOW_SEC and
// RATELIMIT_<PROFILE>_BURST. Non-positive or unparsable values are ignored.
func RateLimitProfilesFromEnv() RateLimitProfiles {
	return RateLimitProfiles{
		Strict:   rateLimitFromEnv("STRICT", StrictLimit),
		Moderate: rateLimitFromEnv("MODERATE", ModerateLimit),
		Lenient:  rateLimitFromEnv("LENIENT", LenientLimit),
	}
}

func rateLimitFromEnv(profile string, cfg RateLimitConfig) RateLimitConfig {
	prefix := "RATELIMIT_" + profile + "_"
	if n, ok := positiveEnvInt(prefix + "REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnvInt(prefix + "WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnvInt(prefix + "BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnvInt(name string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(name))
	return n, err == nil && n > 0
}

// KeyFunc maps a request to its rate limit bucket. An empty key skips
// limiting for that request.
type KeyFunc func(*http.Request) string

// ProxyTrust lists the peers allowed to report the client address through
// X-Forwarded-For or X-Real-IP. The zero value trusts no one and keys every
// request by its RemoteAddr.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts CIDRs ("10.0.0.0/8") and bare addresses.
func ParseTrustedProxies(entries []string) (ProxyTrust, error) {
	var p ProxyTrust
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			prefix, err := netip.ParsePrefix(e)
			if err != nil {
				return ProxyTrust{}, fmt.Errorf("httpx: trusted proxy %q: %w", e, err)
			}
			p.prefixes = append(p.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return ProxyTrust{}, fmt.Errorf("httpx: trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

func (p ProxyTrust) trusts(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FromTrustedProxy reports whether the direct peer is a trusted proxy, i.e.
// whether its forwarding headers may be believed.
func (p ProxyTrust) FromTrustedProxy(r *http.Request) bool {
	return p.trusts(remoteHost(r))
}

// ClientIP returns the address of the caller. Forwarding headers are only
// read when the direct peer is trusted; X-Forwarded-For is then walked from
// the right and the first untrusted hop wins.
func (p ProxyTrust) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !p.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if _, err := netip.ParseAddr(hop); err != nil {
				// Garbage in the chain; stop at the last hop we could verify.
				return peer
			}
			if !p.trusts(hop) {
				return hop
			}
			peer = hop
		}
		return peer
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

// UserOrIPKey buckets signed-in callers by user and everyone else by IP.
func (p ProxyTrust) UserOrIPKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + p.ClientIP(r)
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter keeps one token bucket per key. A bucket untouched for a full
// refill period is back at capacity, so it is dropped and recreated on the
// next request.
type keyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	nextSweep time.Time

	now func() time.Time
}

func newKeyedLimiter(cfg RateLimitConfig) *keyedLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}

	perToken := cfg.Window / time.Duration(cfg.RequestsPerWindow)
	return &keyedLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Every(perToken),
		burst:     cfg.Burst,
		idleAfter: max(perToken*time.Duration(cfg.Burst), time.Minute),
		now:       time.Now,
	}
}

// take spends one token for key. When none is available it reports how long
// the caller has to wait instead.
func (kl *keyedLimiter) take(key string) (ok bool, wait time.Duration, remaining int) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	if !now.Before(kl.nextSweep) {
		for k, b := range kl.buckets {
			if now.Sub(b.lastSeen) >= kl.idleAfter {
				delete(kl.buckets, k)
			}
		}
		kl.nextSweep = now.Add(kl.idleAfter)
	}

	b, found := kl.buckets[key]
	if !found {
		b = &bucket{lim: rate.NewLimiter(kl.limit, kl.burst)}
		kl.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, 0
	}
	return true, 0, int(b.lim.TokensAt(now))
}

func (kl *keyedLimiter) size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.buckets)
}

// RateLimit answers 429 with a Retry-After header once the bucket for the
// request's key is empty.
func RateLimit(cfg RateLimitConfig, key KeyFunc) Middleware {
	kl := newKeyedLimiter(cfg)
	limitHeader := strconv.Itoa(cfg.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait, remaining := kl.take(k)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limitHeader)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				retryAfter := int(math.Ceil(wait.Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", k,
					"path", r.URL.Path,
					"retry_after", retryAfter,
				)
				WriteError(w, http.StatusTooManyRequests, MsgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (p ProxyTrust) RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, p.ClientIP)
}

// RateLimitByUser must run after SessionMiddleware to see the user.
func (p ProxyTrust) RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, p.UserOrIPKey)
}
