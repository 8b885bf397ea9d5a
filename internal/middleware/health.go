package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Uptime      string    `json:"uptime"`
	Version     string    `json:"version"`
	Error       string    `json:"error,omitempty"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker pings every database pool at most once per cacheDuration so
// a busy load balancer does not hammer the databases.
type HealthChecker struct {
	db            Pinger
	version       string
	started       time.Time
	cacheDuration time.Duration
	log           *zap.Logger
	now           func() time.Time

	mu   sync.Mutex
	last *HealthStatus
}

func NewHealthChecker(db Pinger, version string, log *zap.Logger) *HealthChecker {
	return &HealthChecker{
		db:            db,
		version:       version,
		started:       time.Now(),
		cacheDuration: 5 * time.Second,
		log:           log,
		now:           time.Now,
	}
}

func (h *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := h.check(c.Request.Context())
		code := http.StatusOK
		if status.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

func (h *HealthChecker) check(ctx context.Context) HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.last != nil && now.Sub(h.last.LastChecked) < h.cacheDuration {
		status := *h.last
		status.Uptime = now.Sub(h.started).Round(time.Second).String()
		return status
	}

	status := HealthStatus{
		Status:      "ok",
		LastChecked: now,
		Uptime:      now.Sub(h.started).Round(time.Second).String(),
		Version:     h.version,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.Ping(pingCtx); err != nil {
		h.log.Warn("Health check failed", zap.Error(err))
		status.Status = "degraded"
		status.Error = "database unreachable"
	}

	h.last = &status
	return status
}
