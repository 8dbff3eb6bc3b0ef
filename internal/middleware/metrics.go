package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kasukras-star/apotikme-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes every routed request by its route template. Probe and scrape routes listed in skip are not recorded.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
