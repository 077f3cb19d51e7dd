package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/common/config"
)

// ipLimiter holds one token bucket per client IP, evicting entries not
// seen within config.RateLimitKeyExpirationDuration.
type ipLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipLimiterEntry
	limit   rate.Limit
	burst   int
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute, burst int) *ipLimiter {
	return &ipLimiter{
		entries: make(map[string]*ipLimiterEntry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.entries[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = now

	if len(l.entries) > 10000 {
		for key, e := range l.entries {
			if now.Sub(e.lastSeen) > config.RateLimitKeyExpirationDuration {
				delete(l.entries, key)
			}
		}
	}
	return entry.limiter.Allow()
}

// RateLimitByIP bounds how often a single IP may hit an endpoint,
// enforcing the per-IP limit on password and email-code endpoints.
func RateLimitByIP(perMinute, burst int) gin.HandlerFunc {
	limiter := newIPLimiter(perMinute, burst)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			AbortWithError(c, apperr.New(apperr.KindRateLimited, "rate_limited").WithRetryAfter(60))
			return
		}
		c.Next()
	}
}
