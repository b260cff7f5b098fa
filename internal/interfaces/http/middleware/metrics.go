package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics receives one observation per completed request.
type HTTPMetrics interface {
	ObserveHTTPRequest(method, route string, status int, seconds float64)
}

// Metrics records request count and latency per route template. Unmatched
// routes are bucketed under "unmatched" to keep label cardinality bounded.
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
