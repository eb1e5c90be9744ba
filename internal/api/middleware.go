package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"expiry-notifier/internal/logging"
)

// RequestLoggingMiddleware logs every request except health probes. Server
// errors are logged at warn level.
func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond),
			"client":  c.ClientIP(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warnf("Request failed: %s", c.Errors.String())
			return
		}
		entry.Infof("Request served")
	}
}
