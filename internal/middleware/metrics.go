package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"portal-service/internal/observability"
)

const unmatchedRoute = "unmatched"

// Metrics records every request under its route template. Requests to the
// paths in skip (metrics scrapes, health checks) are not counted.
func Metrics(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		observability.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
