package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-secure/pkg/config"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/session"
)

// DefaultBucketTTL is how long an idle bucket is kept.
const DefaultBucketTTL = time.Hour

// Middleware throttles requests per client IP and per signed-in principal.
type Middleware struct {
	cfg         config.RateLimitConfig
	ipLimiter   *RateLimiter
	userLimiter *RateLimiter
}

func NewMiddleware(cfg config.RateLimitConfig) *Middleware {
	return &Middleware{
		cfg:         cfg,
		ipLimiter:   NewRateLimiter(cfg.PerIPCapacity, cfg.PerIPRefillRate, DefaultBucketTTL),
		userLimiter: NewRateLimiter(cfg.PerUserCapacity, cfg.PerUserRefillRate, DefaultBucketTTL),
	}
}

// Run sweeps idle buckets until ctx is done.
func (m *Middleware) Run(ctx context.Context) {
	go m.userLimiter.Run(ctx)
	m.ipLimiter.Run(ctx)
}

// Handler is a no-op when rate limiting is disabled. With TrustProxy set the
// client address is taken from the forwarding headers.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if !m.cfg.Enabled {
		return next
	}
	if m.cfg.TrustProxy {
		return middleware.RealIP(m.limit(next))
	}
	return m.limit(next)
}

func (m *Middleware) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ok, wait := m.ipLimiter.Allow(ip); !ok {
			m.exceeded(w, r, "ip", ip, wait)
			return
		}

		user := session.IDFromContext(r.Context())
		if !user.IsNone() {
			if ok, wait := m.userLimiter.Allow(user.String()); !ok {
				m.exceeded(w, r, "principal", user.String(), wait)
				return
			}
		}

		if m.cfg.IncludeHeaders {
			w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.cfg.PerIPCapacity))
			if !user.IsNone() {
				w.Header().Set("X-RateLimit-Limit-User", strconv.Itoa(m.cfg.PerUserCapacity))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) exceeded(w http.ResponseWriter, r *http.Request, limitType, key string, wait time.Duration) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"key", key,
		"path", r.URL.Path,
		"method", r.Method,
	)

	retryAfter := strconv.Itoa(int(math.Ceil(wait.Seconds())))
	err := apperrors.RateLimitExceeded(retryAfter)
	w.Header().Set("Retry-After", retryAfter)
	render.Status(r, err.HTTPStatusCode())
	render.JSON(w, r, map[string]string{"error": err.Message, "code": string(err.Code)})
}

// clientIP keys on the socket address only. Behind a trusted proxy RealIP
// has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
