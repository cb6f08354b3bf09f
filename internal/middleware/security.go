package middleware

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/rockhunter-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"

	AdminTokenHeader = "X-Admin-Token"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// RequireAdminToken rejects requests without the admin token. An empty
// token disables the routes it guards.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeLimitError(w, http.StatusNotFound, "Admin endpoints are disabled")
				return
			}
			got := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeLimitError(w, http.StatusUnauthorized, "Invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- In-process per-IP limiting ---

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// IPLimiter keeps one token bucket per client IP. Idle buckets are dropped
// by Sweep.
type IPLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
}

func NewIPLimiter(limit rate.Limit, burst int) *IPLimiter {
	return &IPLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		ttl:     limiterTTL,
	}
}

const (
	globalRateLimitRPS   = 5
	globalRateLimitBurst = 20
	loginRateLimitEvery  = 5 * time.Second
	loginRateLimitBurst  = 2
	uploadRateLimitEvery = 3 * time.Second
	uploadRateLimitBurst = 5
	cleanupInterval      = 5 * time.Minute
	limiterTTL           = 30 * time.Minute
)

func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastUse = time.Now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep removes buckets unused for longer than the TTL.
func (l *IPLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.entries {
		if now.Sub(e.lastUse) > l.ttl {
			delete(l.entries, ip)
		}
	}
}

// Size returns the number of tracked IPs.
func (l *IPLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Handler rejects requests over the limit with 429. paths, when non-empty,
// restricts the limiter to those exact paths.
func (l *IPLimiter) Handler(message string, paths ...string) func(http.Handler) http.Handler {
	only := make(map[string]bool, len(paths))
	for _, p := range paths {
		only[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(only) > 0 && !only[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientip.RealClientIP(r)) {
				writeLimitError(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Limiters is the set of in-process limiters used by the router.
type Limiters struct {
	Global *IPLimiter
	Login  *IPLimiter
	Upload *IPLimiter
}

func NewLimiters() *Limiters {
	return &Limiters{
		Global: NewIPLimiter(rate.Limit(globalRateLimitRPS), globalRateLimitBurst),
		Login:  NewIPLimiter(rate.Every(loginRateLimitEvery), loginRateLimitBurst),
		Upload: NewIPLimiter(rate.Every(uploadRateLimitEvery), uploadRateLimitBurst),
	}
}

// RunCleanup sweeps idle buckets until done is closed.
func (ls *Limiters) RunCleanup(done <-chan struct{}) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			ls.Global.Sweep(now)
			ls.Login.Sweep(now)
			ls.Upload.Sweep(now)
		}
	}
}

// GlobalRateLimit limits each IP across all routes.
func (ls *Limiters) GlobalRateLimit() func(http.Handler) http.Handler {
	return ls.Global.Handler("Too many requests. Please slow down.")
}

// LoginRateLimit applies a stricter limit to the sign-in and sign-up routes.
func (ls *Limiters) LoginRateLimit() func(http.Handler) http.Handler {
	return ls.Login.Handler("Too many login attempts. Please try again later.", "/api/auth/signin", "/api/auth/signup")
}

// UploadRateLimit limits photo uploads, which are the most expensive requests.
func (ls *Limiters) UploadRateLimit() func(http.Handler) http.Handler {
	return ls.Upload.Handler("Too many photo uploads. Please wait a moment.")
}

// ProductionSecurity returns middlewares for production: SecurityHeaders → GlobalRateLimit → LoginRateLimit.
func (ls *Limiters) ProductionSecurity() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		ls.GlobalRateLimit(),
		ls.LoginRateLimit(),
	}
}

func writeLimitError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}
