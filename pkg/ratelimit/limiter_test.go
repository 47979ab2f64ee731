package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/session"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestTokenBucketTake(t *testing.T) {
	c := newClock()
	tb := NewTokenBucket(3, 1.0, c.now())

	for i := 0; i < 3; i++ {
		ok, _ := tb.Take(c.now())
		assert.True(t, ok, "request %d", i+1)
	}
	ok, wait := tb.Take(c.now())
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	c.advance(2 * time.Second)
	ok, _ = tb.Take(c.now())
	assert.True(t, ok)
	ok, _ = tb.Take(c.now())
	assert.True(t, ok)
	ok, _ = tb.Take(c.now())
	assert.False(t, ok)
}

func TestTokenBucketNeverExceedsCapacity(t *testing.T) {
	c := newClock()
	tb := NewTokenBucket(2, 10, c.now())
	c.advance(time.Hour)
	_, _ = tb.Take(c.now())
	assert.InDelta(t, 1.0, tb.Tokens(), 0.0001)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	c := newClock()
	rl := NewRateLimiter(1, 0.5, time.Minute)
	rl.now = c.now

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, wait := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	ok, _ = rl.Allow("b")
	assert.True(t, ok)

	c.advance(2 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiterSweep(t *testing.T) {
	c := newClock()
	rl := NewRateLimiter(5, 1, time.Minute)
	rl.now = c.now

	rl.Allow("old")
	c.advance(2 * time.Minute)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.Sweep())
	assert.Zero(t, rl.Sweep())
}

func TestRateLimiterRunStopsWithContext(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddlewarePerIP(t *testing.T) {
	m := NewMiddleware(config.RateLimitConfig{
		Enabled: true, PerIPCapacity: 2, PerIPRefillRate: 0.5,
		PerUserCapacity: 10, PerUserRefillRate: 1, IncludeHeaders: true,
	})
	c := newClock()
	m.ipLimiter.now = c.now
	h := m.Handler(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/settings", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("203.0.113.9").Code)
	rec := send("203.0.113.9")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit-IP"))

	rec = send("203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusNoContent, send("198.51.100.7").Code)
}

func TestMiddlewarePerPrincipal(t *testing.T) {
	m := NewMiddleware(config.RateLimitConfig{
		Enabled: true, PerIPCapacity: 100, PerIPRefillRate: 1,
		PerUserCapacity: 1, PerUserRefillRate: 0.1,
	})
	sessions := session.NewManager(config.SessionConfig{Secret: "ratelimit-test-secret", CookieName: "s", TTL: time.Hour})
	h := sessions.Verifier()(m.Handler(okHandler()))

	token, _, err := sessions.Encode(5)
	require.NoError(t, err)
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/logs", nil)
		req.Header.Set(session.HeaderName, token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestMiddlewareDisabled(t *testing.T) {
	m := NewMiddleware(config.RateLimitConfig{Enabled: false, PerIPCapacity: 1})
	h := m.Handler(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestClientIPIgnoresForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Real-IP", "192.0.2.2")
	req.Header.Set("X-Forwarded-For", "192.0.2.3, 192.0.2.4")
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.RemoteAddr = "192.0.2.9"
	assert.Equal(t, "192.0.2.9", clientIP(req))
}

func TestRotatingForwardedForDoesNotResetBucket(t *testing.T) {
	m := NewMiddleware(config.RateLimitConfig{
		Enabled: true, PerIPCapacity: 1, PerIPRefillRate: 0.01,
		PerUserCapacity: 10, PerUserRefillRate: 1,
	})
	h := m.Handler(okHandler())

	codes := make([]int, 0, 3)
	for _, spoof := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/settings", nil)
		req.RemoteAddr = "203.0.113.50:1234"
		req.Header.Set("X-Forwarded-For", spoof)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestTrustedProxyKeysOnForwardedFor(t *testing.T) {
	m := NewMiddleware(config.RateLimitConfig{
		Enabled: true, PerIPCapacity: 1, PerIPRefillRate: 0.01,
		PerUserCapacity: 10, PerUserRefillRate: 1, TrustProxy: true,
	})
	h := m.Handler(okHandler())

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/settings", nil)
		req.RemoteAddr = "10.0.0.1:8080"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, http.StatusNoContent, send("198.51.100.2"))
}
