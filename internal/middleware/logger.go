package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		}
		if env := c.GetHeader(DatabaseEnvironmentHeader); env != "" {
			fields = append(fields, zap.String("db_environment", env))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("Request failed", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		default:
			log.Info("Request handled", fields...)
		}
	}
}
