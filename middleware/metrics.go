package middleware

import (
	"corncare-backend/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count, latency and in-flight requests per route template
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.RequestStarted()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		done(c.Request.Method, path, c.Writer.Status())
	}
}
