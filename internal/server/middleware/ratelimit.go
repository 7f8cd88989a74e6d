package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
	"github.com/pulsedelta/backend/internal/server/response"
)

// RateLimitMessage is the body message of a rejected request.
const RateLimitMessage = "Too many requests from this IP, please try again later."

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// PathPrefix limits enforcement to matching paths. Empty means all.
	PathPrefix string
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	TrustProxy bool
}

// RateLimit returns middleware that applies per-client rate limiting using
// the provided domain.RateLimiter. Every checked response carries the
// RateLimit-Limit, RateLimit-Remaining and RateLimit-Reset headers.
func RateLimit(limiter domain.RateLimiter, cfg RateLimitConfig, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, cfg.PathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := ClientIP(r, cfg.TrustProxy)
			dec, err := limiter.Allow(r.Context(), "api:"+clientIP, cfg.Limit, cfg.Window)
			if err != nil {
				// Fail open; a limiter outage must not take the API down.
				logger.WarnContext(r.Context(), "http: rate limiter unavailable",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			reset := strconv.Itoa(ceilSeconds(dec.ResetIn))
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(dec.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			h.Set("RateLimit-Reset", reset)

			if !dec.Allowed {
				m.RateLimited()
				h.Set("Retry-After", reset)
				response.Error(w, http.StatusTooManyRequests, RateLimitMessage, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// ClientIP determines the client address. Proxy headers are honoured only
// when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip, _, _ := strings.Cut(xff, ",")
			if ip = strings.TrimSpace(ip); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
