package rate_limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration, now *time.Time) *RateLimiter {
	rl := NewRateLimiter(limit, window)
	rl.now = func() time.Time { return *now }
	return rl
}

func TestIsAllowedSlidingWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(2, time.Minute, &now)
	defer rl.Stop()

	assert.True(t, rl.IsAllowed("user:1"))
	assert.True(t, rl.IsAllowed("user:1"))
	assert.False(t, rl.IsAllowed("user:1"))
	assert.True(t, rl.IsAllowed("user:2"), "keys are independent")
	assert.Equal(t, 0, rl.GetRemainingRequests("user:1"))

	now = now.Add(61 * time.Second)
	assert.Equal(t, 2, rl.GetRemainingRequests("user:1"))
	assert.True(t, rl.IsAllowed("user:1"))
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, time.Minute, &now)
	defer rl.Stop()

	router := gin.New()
	router.POST("/batches", func(c *gin.Context) { c.Set("userID", "9") }, rl.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/batches", nil))
	assert.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/batches", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("X-RateLimit-Limit"))
}

func TestCallerKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.7", CallerKey(c))

	c.Request.Header.Set("X-Forwarded-For", "10.1.2.3")
	c.Request.Header.Set("User-Agent", "scanner")
	assert.Equal(t, "ip:10.1.2.3:scanner", CallerKey(c))

	c.Set("userID", "12")
	assert.Equal(t, "user:12", CallerKey(c))
}
