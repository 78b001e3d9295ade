package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aulalink/aulalink-api/internal/service"
)

// Metrics records one observation per request, labelled by the route
// template so path parameters do not explode the cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// Unmatched requests (404s) collapse into one series.
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
