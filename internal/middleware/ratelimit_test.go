package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_BurstThenDeny(t *testing.T) {
	cl := NewClientLimiter(60, 3)
	defer cl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, cl.Allow("ip:1.2.3.4"), "request %d within burst", i)
	}
	assert.False(t, cl.Allow("ip:1.2.3.4"), "burst exhausted")
}

func TestClientLimiter_KeysAreIndependent(t *testing.T) {
	cl := NewClientLimiter(60, 1)
	defer cl.Stop()

	assert.True(t, cl.Allow("ip:1.1.1.1"))
	assert.False(t, cl.Allow("ip:1.1.1.1"))
	assert.True(t, cl.Allow("ip:2.2.2.2"), "a saturated bucket must not affect other clients")
}

func TestClientRateLimit_Returns429(t *testing.T) {
	cl := NewClientLimiter(60, 1)
	defer cl.Stop()

	r := gin.New()
	r.Use(ClientRateLimit(cl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestClientRateLimit_PrefersUserKey(t *testing.T) {
	cl := NewClientLimiter(60, 1)
	defer cl.Stop()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "0xa1b2c3")
		c.Next()
	})
	r.Use(ClientRateLimit(cl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Same user, different source address: one shared bucket.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestGlobalRateLimit_NilLimiterPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(GlobalRateLimit(nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
