package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"imageupdater/internal/api/middleware"
	"imageupdater/internal/apperr"
	"imageupdater/internal/imageupdate"
	"imageupdater/internal/logger"

	"github.com/gin-gonic/gin"
)

type ImageUpdateHandler struct {
	service *imageupdate.Service
	logger  *logger.Logger
}

func NewImageUpdateHandler(service *imageupdate.Service, logger *logger.Logger) *ImageUpdateHandler {
	return &ImageUpdateHandler{
		service: service,
		logger:  logger,
	}
}

type createOperationRequest struct {
	CollectionID string   `json:"collection_id"`
	ProductIDs   []string `json:"product_ids"`
}

func (h *ImageUpdateHandler) Create(c *gin.Context) {
	var req createOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	create := imageupdate.CreateRequest{CollectionID: req.CollectionID, ProductIDs: req.ProductIDs}
	if sess := middleware.Session(c); sess != nil {
		create.UserID = strconv.FormatUint(uint64(sess.ID), 10)
		create.UserName = sess.UserName
	}

	op, err := h.service.Create(c.Request.Context(), create)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"operation": op})
}

func (h *ImageUpdateHandler) Get(c *gin.Context) {
	op, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operation": op})
}

func (h *ImageUpdateHandler) DownloadCSV(c *gin.Context) {
	id := c.Param("id")
	data, err := h.service.CSV(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="image-updates-%s.csv"`, id))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// UploadCSV takes the multipart field "csv".
func (h *ImageUpdateHandler) UploadCSV(c *gin.Context) {
	limit := h.service.MaxUploadSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+(1<<20))

	fh, err := c.FormFile("csv")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, apperr.TooLargeErr("CSV is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"csv\" is required"})
		return
	}
	if fh.Size > limit {
		respondError(c, h.logger, apperr.TooLargeErr("CSV is too large"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.service.UploadCSV(c.Request.Context(), c.Param("id"), data)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ImageUpdateHandler) Process(c *gin.Context) {
	result, err := h.service.Process(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h *ImageUpdateHandler) History(c *gin.Context) {
	ops, err := h.service.History(c.Request.Context(), queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

func (h *ImageUpdateHandler) Rollback(c *gin.Context) {
	result, err := h.service.Rollback(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ImageUpdateHandler) Repeat(c *gin.Context) {
	op, err := h.service.Repeat(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success":   true,
		"message":   "Repeat started as " + op.OperationID,
		"operation": op,
	})
}
