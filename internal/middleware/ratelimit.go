package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/cache"
)

// RateLimiter is the token bucket store behind the rate limit middleware.
type RateLimiter interface {
	CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter

	// Per-user humanize limit. Zero disables it.
	UserPerMinute int
	UserBurst     int

	// Per-IP limit in front of authentication. Zero disables it.
	IPPerSecond int
	IPBurst     int
}

// RateLimitUser limits requests per authenticated user.
// Must be applied after Auth.
func RateLimitUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserIDFromContext(r.Context())
			if cfg.UserPerMinute <= 0 || userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.CheckUserRateLimit(r.Context(), userID, cfg.UserPerMinute, cfg.UserBurst)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("user_id", userID),
				)
				// Fail open.
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.UserPerMinute, result.Remaining, result.ResetAt)
			if !result.Allowed {
				logRateLimited(cfg.Logger, r, "user", result.RetryAfter, slog.String("user_id", userID))
				writeRateLimitError(w, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP limits requests per client address. It expects chi's RealIP
// middleware to have normalized RemoteAddr.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.IPPerSecond <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.IPPerSecond, cfg.IPBurst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				logRateLimited(cfg.Logger, r, "ip", result.RetryAfter, slog.String("ip", ip))
				writeRateLimitError(w, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logRateLimited(logger *slog.Logger, r *http.Request, kind string, retryAfter time.Duration, attr slog.Attr) {
	logger.Warn("rate limit exceeded",
		slog.String("type", kind),
		attr,
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int64("retry_after_seconds", int64(retryAfter.Seconds())),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", secs))
}

// clientIP strips the port from RemoteAddr when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
