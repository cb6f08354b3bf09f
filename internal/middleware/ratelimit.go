package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/rockhunter-backend/pkg/clientip"
)

const (
	// RateLimitWindow is 120 seconds
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked
	BlockedIPDuration = 15 * time.Minute

	redisLimitTimeout = 500 * time.Millisecond
)

// RedisRateLimiter counts requests per IP in a fixed window shared by every
// node using the same Redis. IPs that exceed it are blocked for a while.
type RedisRateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	logger *slog.Logger
}

func NewRedisRateLimiter(client *redis.Client, logger *slog.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimiter{client: client, max: RateLimitMaxRequests, window: RateLimitWindow, logger: logger}
}

// hit records one request and returns the count in the current window.
func (l *RedisRateLimiter) hit(ctx context.Context, ip string) (blocked bool, count int64, err error) {
	blockedKey := BlockedIPKeyPrefix + ip
	rateLimitKey := RateLimitKeyPrefix + ip

	var incr *redis.IntCmd
	var exists *redis.IntCmd
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, blockedKey)
		incr = pipe.Incr(ctx, rateLimitKey)
		// Only the first hit of a window sets the expiry
		pipe.ExpireNX(ctx, rateLimitKey, l.window)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if exists.Val() > 0 {
		return true, incr.Val(), nil
	}

	count = incr.Val()
	if count > l.max {
		if err := l.client.Set(ctx, blockedKey, "1", BlockedIPDuration).Err(); err != nil {
			return false, count, err
		}
		return true, count, nil
	}
	return false, count, nil
}

// Middleware fails open: when Redis is unreachable the request goes through.
func (l *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)

		ctx, cancel := context.WithTimeout(r.Context(), redisLimitTimeout)
		blocked, count, err := l.hit(ctx, ip)
		cancel()
		if err != nil {
			l.logger.Warn("rate limit check failed, allowing request", "ip", ip, "err", err)
			next.ServeHTTP(w, r)
			return
		}

		if blocked {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(fmt.Sprintf(`{"success":false,"message":"Rate limit exceeded. Please try again later.","retry_after":%d}`, int(BlockedIPDuration.Seconds()))))
			return
		}

		// Add rate limit headers
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.max, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(l.max-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(l.window).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}
