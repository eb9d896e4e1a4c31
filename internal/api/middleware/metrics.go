package middleware

import (
	"net/http"

	"imageupdater/internal/metrics"

	"github.com/gin-gonic/gin"
)

func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if c.Request.Method == http.MethodOptions {
			return
		}
		m.HTTPRequest(c.Request.Method, route, c.Writer.Status())
	}
}
