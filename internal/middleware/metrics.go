package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inevitable-science/article-registry/internal/telemetry"
)

// Metrics records the request counter and latency histogram for every request.
// The path label uses the matched route template from c.FullPath(), not the
// raw URL, so /article/id/0x1234 and /article/id/0x5678 share one series.
// Requests matching no route are labelled "<no-route>" to cap cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
