package middleware

import (
	"context"
	"net/http"
	"strings"

	"imageupdater/internal/apperr"
	"imageupdater/internal/models"

	"github.com/gin-gonic/gin"
)

const CtxKeySession = "session"

// Authenticator resolves a bearer token to its session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func RequireSession(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := auth.Authenticate(c.Request.Context(), BearerToken(c))
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				c.Error(err)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": apperr.PublicMessage(err)})
			return
		}
		c.Set(CtxKeySession, sess)
		c.Next()
	}
}

// Session returns the session set by RequireSession, or nil.
func Session(c *gin.Context) *models.Session {
	if v, ok := c.Get(CtxKeySession); ok {
		if s, ok := v.(*models.Session); ok {
			return s
		}
	}
	return nil
}
