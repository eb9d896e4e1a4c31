package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"imageupdater/internal/apperr"
	"imageupdater/internal/logger"
	"imageupdater/internal/search"
	"imageupdater/internal/services/shopify"

	"github.com/gin-gonic/gin"
)

// respondError writes {"error": msg}. Unclassified errors are logged and
// answered with a generic message.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := apperr.HTTPStatus(err)
	msg := apperr.PublicMessage(err)

	var apiErr *shopify.APIError
	if _, ok := apperr.As(err); !ok {
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
			status, msg = http.StatusNotFound, "Not found"
		case errors.As(err, &apiErr):
			status, msg = http.StatusBadGateway, "Shopify request failed"
		case errors.Is(err, shopify.ErrInvalidGID), errors.Is(err, search.ErrInvalidCursor):
			status, msg = http.StatusBadRequest, err.Error()
		}
	}
	if status >= http.StatusInternalServerError {
		log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// queryLimit reads ?limit within [1, max].
func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
