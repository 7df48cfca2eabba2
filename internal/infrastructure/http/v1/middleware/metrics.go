package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records request duration by route.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, d time.Duration)
}

// Metrics middleware reports every request to obs, labelled by route pattern.
func Metrics(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
