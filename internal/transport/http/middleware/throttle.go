package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	throttleIdleTTL       = 5 * time.Minute
	throttleSweepInterval = time.Minute
)

type throttleBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is an in-process token bucket per client IP. It guards the whole API group and
// complements the Redis-backed limits on credential endpoints.
type Throttle struct {
	mu        sync.Mutex
	buckets   map[string]*throttleBucket
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewThrottle returns nil when rps is not positive so callers can skip registration.
func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps) + 1
	}
	return &Throttle{
		buckets: make(map[string]*throttleBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Handler returns the gin middleware. A nil Throttle passes everything through.
func (t *Throttle) Handler() gin.HandlerFunc {
	if t == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		if !t.allow(ip) {
			c.Header("Retry-After", "1")
			abortWith(c, http.StatusTooManyRequests, "Too Many Attempts.", map[string][]string{
				"rate_limit": {"Too many requests. Slow down."},
			})
			return
		}
		c.Next()
	}
}

func (t *Throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > throttleSweepInterval {
		for k, b := range t.buckets {
			if now.Sub(b.lastSeen) > throttleIdleTTL {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &throttleBucket{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}
