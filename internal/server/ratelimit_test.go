package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*rateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(limit, window)
	rl.now = clock.now
	t.Cleanup(rl.stop)
	return rl, clock
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Minute)

	assert.True(t, rl.allow("10.0.0.1"))
	clock.advance(20 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "limits are per client")

	assert.Equal(t, "40", rl.retryAfter("10.0.0.1"))

	clock.advance(41 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"), "first hit left the window")
	assert.False(t, rl.allow("10.0.0.1"))
}

func TestRateLimiterBlockedDoesNotCount(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Minute)

	for range 5 {
		assert.False(t, rl.blocked("10.0.0.1"))
	}
	rl.record("10.0.0.1")
	rl.record("10.0.0.1")
	assert.True(t, rl.blocked("10.0.0.1"))

	clock.advance(time.Minute)
	assert.False(t, rl.blocked("10.0.0.1"))
}

func TestRateLimiterSweep(t *testing.T) {
	rl, clock := newTestLimiter(t, 3, time.Minute)
	rl.record("10.0.0.1")
	clock.advance(30 * time.Second)
	rl.record("10.0.0.2")

	clock.advance(45 * time.Second)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.hits, "10.0.0.1")
	assert.Len(t, rl.hits["10.0.0.2"], 1)
}

func TestLimitFailuresCountsOnlyErrors(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Minute)
	status := http.StatusOK
	h := limitFailures(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	for range 3 {
		assert.Equal(t, http.StatusOK, call().Code)
	}
	status = http.StatusUnauthorized
	assert.Equal(t, http.StatusUnauthorized, call().Code)
	assert.Equal(t, http.StatusUnauthorized, call().Code)

	w := call()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	h := corsMiddleware("https://church.example.org")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/hymns", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://church.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
