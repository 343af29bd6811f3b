package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per key in fixed windows
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int           // requests per window
	window    time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
	}
}

// Allow records one request for key and reports whether it is within the limit
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastReset) > l.window {
		l.tokens = make(map[string]int)
		l.lastReset = time.Now()
	}

	count := l.tokens[key]
	if count >= l.rate {
		return false
	}
	l.tokens[key] = count + 1
	return true
}

// RetryAfter reports how long until the current window resets
func (l *RateLimiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.window - time.Since(l.lastReset)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RateLimit middleware limits requests per client IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	return RateLimitBy(rate, window, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByUser limits requests per authenticated operator. Imports are
// expensive, so they get their own budget on top of the per-IP one.
func RateLimitByUser(rate int, window time.Duration) gin.HandlerFunc {
	return RateLimitBy(rate, window, func(c *gin.Context) string {
		if username := GetUsername(c); username != "" {
			return "user:" + username
		}
		return c.ClientIP()
	})
}

// RateLimitBy limits requests per key returned by keyFn
func RateLimitBy(rate int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		key := keyFn(c)
		if !limiter.Allow(key) {
			retry := limiter.RetryAfter()
			logger.Warn(c.Request.Context(), "rate limit exceeded",
				"key", key,
				"path", c.Request.URL.Path,
				"retry_after", retry.String(),
			)

			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
