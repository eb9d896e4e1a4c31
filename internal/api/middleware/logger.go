package middleware

import (
	"time"

	"imageupdater/internal/logger"

	"github.com/gin-gonic/gin"
)

var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

// Logger writes one structured access line per request. Server errors are
// logged at error level, client errors at warn.
func Logger(logger *logger.Logger) gin.HandlerFunc {
	zl := logger.Zerolog()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		if quietPaths[path] {
			return
		}
		status := c.Writer.Status()
		ev := zl.Info()
		switch {
		case status >= 500:
			ev = zl.Error()
		case status >= 400:
			ev = zl.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxKeyRequestID))
		if len(c.Errors) > 0 {
			ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}
