package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khaind/macad-api/internal/service"
)

// Metrics records per-request duration and status counters. Routes
// without a registered pattern fall back to the raw path so 404s
// still show up, and the scrape endpoint itself is skipped.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
