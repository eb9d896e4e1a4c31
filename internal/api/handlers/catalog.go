package handlers

import (
	"context"
	"net/http"
	"strings"

	"imageupdater/internal/logger"
	"imageupdater/internal/models"
	"imageupdater/internal/search"

	"github.com/gin-gonic/gin"
)

const (
	defaultCollectionsLimit = 10
	defaultProductsLimit    = 20
	maxPageLimit            = 250
)

// Catalog is the read side of the store.
type Catalog interface {
	ListCollections(ctx context.Context, limit int, after string) ([]models.Collection, models.PageInfo, error)
	GetCollection(ctx context.Context, gid string) (*models.Collection, error)
	ListProducts(ctx context.Context, collectionGID string, limit int, after string) ([]models.Product, models.PageInfo, error)
}

type CatalogHandler struct {
	catalog Catalog
	logger  *logger.Logger
}

func NewCatalogHandler(catalog Catalog, logger *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ListCollections pages through collections. With ?query the full list is
// filtered by title or handle and paged by offset cursors.
func (h *CatalogHandler) ListCollections(c *gin.Context) {
	ctx := c.Request.Context()
	limit := queryLimit(c, defaultCollectionsLimit, maxPageLimit)
	after := c.Query("after")
	query := strings.TrimSpace(c.Query("query"))

	if query == "" {
		items, info, err := h.catalog.ListCollections(ctx, limit, after)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, models.CollectionsPage{Collections: nonNil(items), PageInfo: info})
		return
	}

	all, err := search.CollectAll(ctx, h.catalog.ListCollections)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	items, info, err := search.Page(search.Filter(all, query), limit, after)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.CollectionsPage{Collections: nonNil(items), PageInfo: info})
}

func (h *CatalogHandler) GetCollection(c *gin.Context) {
	col, err := h.catalog.GetCollection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": col})
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	collectionID := c.Query("collection_id")
	if collectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection_id is required"})
		return
	}
	limit := queryLimit(c, defaultProductsLimit, maxPageLimit)

	items, info, err := h.catalog.ListProducts(c.Request.Context(), collectionID, limit, c.Query("after"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []models.Product{}
	}
	c.JSON(http.StatusOK, models.ProductsPage{Products: items, PageInfo: info})
}

func nonNil(items []models.Collection) []models.Collection {
	if items == nil {
		return []models.Collection{}
	}
	return items
}
