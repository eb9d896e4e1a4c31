package middleware

import (
	"errors"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"imageupdater/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic in a handler into a 500 carrying the request id.
// A client that went away mid-response is not logged.
func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && clientGone(err) {
			c.Abort()
			return
		}

		rid := c.GetString(CtxKeyRequestID)
		if gin.IsDebugging() {
			logger.Error("[Recovery] %s %s (request %s) panicked: %v\n%s", c.Request.Method, c.Request.URL.Path, rid, recovered, debug.Stack())
		} else {
			logger.Error("[Recovery] %s %s (request %s) panicked: %v", c.Request.Method, c.Request.URL.Path, rid, recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error", "requestId": rid})
	})
}

func clientGone(err error) bool {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var se *os.SyscallError
	if errors.As(err, &se) {
		msg := strings.ToLower(se.Error())
		return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
	}
	return false
}
