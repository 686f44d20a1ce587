package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func rateLimitedEcho(limit rate.Limit, burst int) *echo.Echo {
	e := echo.New()
	e.POST("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}, PerIPRateLimit(limit, burst))
	return e
}

func TestPerIPRateLimitAllowsBurstThenThrottles(t *testing.T) {
	e := rateLimitedEcho(rate.Every(time.Hour), 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ping", nil)
		req.Header.Set("X-Real-IP", "203.0.113.9")
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d within burst", i+1)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIPRateLimiterEvictsIdleBuckets(t *testing.T) {
	rl := newIPRateLimiter(rate.Every(time.Hour), 1)

	assert.True(t, rl.allow("203.0.113.9"))
	assert.True(t, rl.allow("198.51.100.4"))

	// Age one bucket past the idle window and force the next allow call
	// to sweep.
	rl.mu.Lock()
	rl.limiters["203.0.113.9"].lastSeen = time.Now().Add(-2 * ipIdleEviction)
	rl.lastSweep = time.Now().Add(-2 * ipSweepInterval)
	rl.mu.Unlock()

	assert.True(t, rl.allow("192.0.2.7"))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	_, evicted := rl.limiters["203.0.113.9"]
	assert.False(t, evicted, "idle bucket should be swept")
	_, kept := rl.limiters["198.51.100.4"]
	assert.True(t, kept, "recently seen bucket should survive the sweep")
}

func TestPerIPRateLimitIsolatesClients(t *testing.T) {
	e := rateLimitedEcho(rate.Every(time.Hour), 1)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	e.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	blocked := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	e.ServeHTTP(blocked, req)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("X-Real-IP", "198.51.100.4")
	e.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}
