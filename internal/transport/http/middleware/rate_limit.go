package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/port"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces RateLimitRules against a shared store.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

type decision struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// RateLimitBody is the 429 payload; it extends the error envelope with retry_after.
type RateLimitBody struct {
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors"`
	RetryAfter int                 `json:"retry_after"`
	TraceID    string              `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a rate limiter over store.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a middleware enforcing every rule. Store failures let the request through.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *decision

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			d, err := rl.evaluate(c.Request.Context(), rule, rule.Name+":"+identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("trace_id", GetTraceID(c)),
					zap.Error(err),
				)
				continue
			}

			if !d.allowed {
				rl.applyHeaders(c, d)
				rl.reject(c, d)
				return
			}
			if tightest == nil || d.remaining < tightest.remaining {
				snapshot := d
				tightest = &snapshot
			}
		}

		if tightest != nil {
			rl.applyHeaders(c, *tightest)
		}
		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, key string, now time.Time) (decision, error) {
	window, recorded, err := rl.store.Hit(ctx, key, rule.Window, rule.Limit, now)
	if err != nil {
		return decision{}, err
	}

	d := decision{allowed: recorded, limit: rule.Limit, reset: now.Add(rule.Window)}
	if !window.Oldest.IsZero() {
		d.reset = window.Oldest.Add(rule.Window)
	}
	d.retryAfter = max(d.reset.Sub(now), 0)
	if recorded {
		d.remaining = max(rule.Limit-window.Count, 0)
	}
	return d, nil
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, d decision) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(d.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))
	if !d.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(d.retryAfter)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, d decision) {
	seconds := retrySeconds(d.retryAfter)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitBody{
		Message:    "Too Many Attempts.",
		Errors:     map[string][]string{"rate_limit": {fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds)}},
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
