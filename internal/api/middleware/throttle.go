package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Throttle is the reject-based route limiter: over-limit requests get a
// 429 with Retry-After instead of waiting. This deliberately differs from
// the delay-based limiter guarding outbound platform calls.
func Throttle(maxRequests int, window time.Duration) gin.HandlerFunc {
	t := &throttle{
		maxRequests: maxRequests,
		window:      window,
		buckets:     make(map[string]*bucket),
	}
	return t.handle
}

type throttle struct {
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	windowStart time.Time
	count       int
}

func (t *throttle) handle(c *gin.Context) {
	allowed, retryAfter := t.take(c.ClientIP(), time.Now())
	if !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}

func (t *throttle) take(key string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[key]
	if !ok || now.Sub(b.windowStart) >= t.window {
		t.buckets[key] = &bucket{windowStart: now, count: 1}
		return true, 0
	}
	if b.count < t.maxRequests {
		b.count++
		return true, 0
	}
	return false, b.windowStart.Add(t.window).Sub(now)
}
