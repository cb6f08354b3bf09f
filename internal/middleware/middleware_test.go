package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/rockhunter-backend/pkg/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(method, path, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestIPLimiterPerIP(t *testing.T) {
	l := NewIPLimiter(rate.Every(time.Hour), 2)
	h := l.Handler("slow down")(okHandler)

	codes := func(addr string, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom(http.MethodGet, "/api/rocks", addr))
			out = append(out, rec.Code)
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes("10.0.0.1:5000", 3))
	// Another client has its own bucket
	assert.Equal(t, []int{200}, codes("10.0.0.2:5000", 1))
	assert.Equal(t, 2, l.Size())
}

func TestIPLimiterPaths(t *testing.T) {
	l := NewIPLimiter(rate.Every(time.Hour), 1)
	h := l.Handler("too many logins", "/api/auth/signin")(okHandler)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(http.MethodGet, "/api/rocks", "10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodPost, "/api/auth/signin", "10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodPost, "/api/auth/signin", "10.0.0.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"too many logins"}`, rec.Body.String())
}

func TestIPLimiterSweep(t *testing.T) {
	l := NewIPLimiter(rate.Limit(1), 1)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	require.Equal(t, 2, l.Size())

	l.Sweep(time.Now())
	assert.Equal(t, 2, l.Size())

	l.Sweep(time.Now().Add(limiterTTL + time.Minute))
	assert.Equal(t, 0, l.Size())
}

func TestRequireAdminToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "disabled", token: "", header: "anything", want: http.StatusNotFound},
		{name: "missing header", token: "secret", header: "", want: http.StatusUnauthorized},
		{name: "wrong token", token: "secret", header: "guess", want: http.StatusUnauthorized},
		{name: "valid", token: "secret", header: "secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/admin/rocks", nil)
			if tt.header != "" {
				req.Header.Set(AdminTokenHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			RequireAdminToken(tt.token)(okHandler).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/rocks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", AdminTokenHeader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)

	req = httptest.NewRequest(http.MethodGet, "/api/rocks", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	h := NewRedisRateLimiter(client, logging.Discard()).Middleware(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom(http.MethodGet, "/api/rocks", "10.0.0.1:1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
