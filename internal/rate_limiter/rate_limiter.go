package rate_limiter

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"farmfleet/pkg/security"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a sliding-window limiter keyed by caller.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			windowStart := rl.now().Add(-rl.window)
			for key, times := range rl.requests {
				valid := prune(times, windowStart)
				if len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) IsAllowed(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := prune(rl.requests[key], now.Add(-rl.window))

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func (rl *RateLimiter) GetRemainingRequests(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.limit - len(prune(rl.requests[key], rl.now().Add(-rl.window)))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Middleware limits by acting user, or by client address for anonymous calls.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CallerKey(c)
		if rl.IsAllowed(key) {
			c.Next()
			return
		}

		reset := rl.now().Add(rl.window).Format(time.RFC3339)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.GetRemainingRequests(key)))
		c.Header("X-RateLimit-Reset", reset)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":    "Rate limit exceeded, try again later",
			"code":     "RATE_LIMITED",
			"reset_at": reset,
		})
	}
}

func CallerKey(c *gin.Context) string {
	if userID := security.UserID(c); userID != 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}

	clientIP := c.GetHeader("X-Forwarded-For")
	if clientIP == "" {
		clientIP = c.GetHeader("X-Real-IP")
	}
	if clientIP == "" {
		clientIP = c.ClientIP()
	}
	if strings.Contains(clientIP, ",") {
		clientIP = strings.TrimSpace(strings.Split(clientIP, ",")[0])
	}

	// Callers behind the same private address are told apart by user agent.
	if isPrivateIP(clientIP) {
		clientIP = clientIP + ":" + c.GetHeader("User-Agent")
	}
	return "ip:" + clientIP
}

func isPrivateIP(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

func prune(times []time.Time, windowStart time.Time) []time.Time {
	var valid []time.Time
	for _, t := range times {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}
