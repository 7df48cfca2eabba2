package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"spcledger/pkg/logger"
)

// quietRoutes are probe and scrape endpoints logged at debug level.
var quietRoutes = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// Logger middleware logs every request with its status and latency.
// Server errors log at error level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"query", query,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			l.Errorw("http request", fields...)
		case quietRoutes[c.FullPath()] && status < 400:
			l.Debugw("http request", fields...)
		default:
			l.Infow("http request", fields...)
		}
	}
}
