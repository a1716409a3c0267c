// ratelimit_redis.go enforces the service-wide request ceiling shared across
// API instances, backed by Redis. It complements the per-client in-memory
// buckets: a single client is stopped locally, a traffic flood across many
// clients is stopped here.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const globalLimitKey = "ratelimit:global"

// GlobalLimiter applies one shared requests-per-minute budget via Redis
type GlobalLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewGlobalLimiter connects to Redis and builds the shared limiter
func NewGlobalLimiter(redisAddr string, requestsPerMinute int) *GlobalLimiter {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	return &GlobalLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.PerMinute(requestsPerMinute),
	}
}

// Allow consumes one unit of the shared budget. Redis being unreachable fails
// open: the per-client limiter still applies and availability wins over strict
// enforcement.
func (gl *GlobalLimiter) Allow(c *gin.Context) bool {
	res, err := gl.limiter.Allow(c.Request.Context(), globalLimitKey, gl.limit)
	if err != nil {
		return true
	}
	return res.Allowed > 0
}

// GlobalRateLimit rejects requests over the shared budget with 429. A nil
// limiter (no Redis configured) disables the check.
func GlobalRateLimit(limiter *GlobalLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow(c) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
