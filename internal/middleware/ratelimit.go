// ratelimit.go enforces per-client token-bucket rate limits in memory. Each
// client (authenticated user id, falling back to IP) gets its own bucket; the
// global cross-instance limit lives in ratelimit_redis.go.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ClientLimiter is an in-memory token bucket limiter keyed by client
type ClientLimiter struct {
	ratePerMinute int
	burst         int

	mu      sync.Mutex
	buckets map[string]*bucket
	stopCh  chan struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewClientLimiter creates a limiter refilling ratePerMinute tokens per minute
// up to burst. Idle buckets are dropped by a background sweep.
func NewClientLimiter(ratePerMinute, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	cl := &ClientLimiter{
		ratePerMinute: ratePerMinute,
		burst:         burst,
		buckets:       make(map[string]*bucket),
		stopCh:        make(chan struct{}),
	}
	go cl.sweep()
	return cl
}

func (cl *ClientLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cl.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for key, b := range cl.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(cl.buckets, key)
				}
			}
			cl.mu.Unlock()
		case <-cl.stopCh:
			return
		}
	}
}

// Stop terminates the background sweep
func (cl *ClientLimiter) Stop() {
	close(cl.stopCh)
}

// Allow consumes one token for the client if available
func (cl *ClientLimiter) Allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := time.Now()
	b, ok := cl.buckets[key]
	if !ok {
		cl.buckets[key] = &bucket{tokens: float64(cl.burst) - 1, lastSeen: now}
		return true
	}

	refill := now.Sub(b.lastSeen).Seconds() * float64(cl.ratePerMinute) / 60.0
	b.tokens = min(float64(cl.burst), b.tokens+refill)
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// ClientRateLimit rejects clients that exceed their bucket with 429
func ClientRateLimit(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(clientKey(c)) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.ratePerMinute))
		c.Next()
	}
}

// clientKey identifies the client: the authenticated user when present,
// otherwise the caller's IP.
func clientKey(c *gin.Context) string {
	if userID := c.GetString(UserIDKey); userID != "" {
		return "user:" + userID
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + c.Request.RemoteAddr
}
