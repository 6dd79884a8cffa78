package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sibec-dev/becas-api/internal/service"
)

// Metrics records request duration and count per route. Unmatched requests
// are bucketed under a single label to keep label cardinality bounded.
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
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
