package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newThrottledRouter(max int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Throttle(max, window))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doPing(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestThrottleRejectsOverLimit(t *testing.T) {
	r := newThrottledRouter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doPing(r).Code)
	}

	w := doPing(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestThrottleWindowResets(t *testing.T) {
	r := newThrottledRouter(1, 50*time.Millisecond)

	assert.Equal(t, http.StatusOK, doPing(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, doPing(r).Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doPing(r).Code)
}

func TestThrottleKeysByClient(t *testing.T) {
	r := newThrottledRouter(1, time.Minute)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// same client is over limit
	assert.Equal(t, http.StatusTooManyRequests, doPing(r).Code)

	// a different client has its own bucket
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
