package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blockpanel/panel/internal/monitoring"
	"github.com/blockpanel/panel/pkg/logger"
)

// RequestLogger logs all HTTP requests with structured logging and feeds the
// request metrics.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		monitoring.RecordHTTPRequest(c.Request.Method, c.FullPath(), status, latency)

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if username, exists := c.Get("username"); exists {
			fields["username"] = username
		}

		message := "HTTP request"
		switch {
		case status >= 500:
			logger.Error(message, nil, fields)
		case status >= 400:
			logger.Warn(message, fields)
		default:
			logger.Info(message, fields)
		}
	}
}
