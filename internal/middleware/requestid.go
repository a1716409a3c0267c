// Package middleware provides the Gin HTTP middleware chain: request ids,
// metrics, security headers, authentication, and rate limiting. Everything
// here is registered in internal/api/router.go ahead of the route handlers.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader propagates the request identifier
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request id
	RequestIDKey = "request_id"
)

// RequestID ensures every request carries a unique identifier. An inbound
// X-Request-ID from a load balancer or gateway is reused; otherwise a fresh
// UUID is generated. The id is stored in the context for log correlation and
// echoed back in the response header. Register this before any middleware
// that logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
