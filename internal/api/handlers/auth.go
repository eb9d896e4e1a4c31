package handlers

import (
	"net/http"

	"imageupdater/internal/api/middleware"
	"imageupdater/internal/auth"
	"imageupdater/internal/logger"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *logger.Logger
}

func NewAuthHandler(auth *auth.Service, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
	UserName string `json:"userName"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	token, sess, err := h.auth.Login(c.Request.Context(), req.Password, req.UserName)
	if err != nil {
		h.logger.Warn("Rejected login from %s", c.ClientIP())
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":     token,
		"expiresAt": sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token != "" {
		if err := h.auth.Logout(c.Request.Context(), token); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}
