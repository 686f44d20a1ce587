package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// ipRateLimiter hands out one token bucket per client IP. Buckets idle
// for more than an hour are evicted so the map does not grow without
// bound. Eviction piggybacks on allow calls, so the limiter needs no
// background goroutine.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	ipSweepInterval = 10 * time.Minute
	ipIdleEviction  = time.Hour
)

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters:  make(map[string]*ipLimiterEntry),
		limit:     limit,
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) >= ipSweepInterval {
		rl.sweepLocked(now)
	}

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// sweepLocked drops buckets idle past the eviction window. Caller holds mu.
func (rl *ipRateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-ipIdleEviction)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
	rl.lastSweep = now
}

// PerIPRateLimit returns echo middleware that throttles requests per
// client IP with the given refill rate and burst.
func PerIPRateLimit(limit rate.Limit, burst int) echo.MiddlewareFunc {
	rl := newIPRateLimiter(limit, burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error": "too many requests, slow down",
				})
			}
			return next(c)
		}
	}
}
