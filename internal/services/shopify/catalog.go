package shopify

import (
	"context"
	"fmt"
	"strings"

	"imageupdater/internal/models"
	"imageupdater/internal/search"
)

// Collection cursors carry the source list and Shopify's page_info:
// "custom|<page_info>" or "smart|<page_info>". The empty cursor starts with
// custom collections.
const (
	sourceCustom = "custom"
	sourceSmart  = "smart"
)

// Catalog exposes the store in wire shapes with GIDs.
type Catalog struct {
	client      *Client
	transformer *Transformer
}

func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client, transformer: NewTransformer()}
}

func splitCursor(after string) (source, pageInfo string, err error) {
	if after == "" {
		return sourceCustom, "", nil
	}
	source, pageInfo, _ = strings.Cut(after, "|")
	if source != sourceCustom && source != sourceSmart {
		return "", "", fmt.Errorf("%w: %q", search.ErrInvalidCursor, after)
	}
	return source, pageInfo, nil
}

// ListCollections pages through custom collections, then smart ones.
func (c *Catalog) ListCollections(ctx context.Context, limit int, after string) ([]models.Collection, models.PageInfo, error) {
	source, pageInfo, err := splitCursor(after)
	if err != nil {
		return nil, models.PageInfo{}, err
	}

	var page *Page[Collection]
	if source == sourceCustom {
		page, err = c.client.ListCustomCollections(ctx, limit, pageInfo)
	} else {
		page, err = c.client.ListSmartCollections(ctx, limit, pageInfo)
	}
	if err != nil {
		return nil, models.PageInfo{}, err
	}

	out := make([]models.Collection, len(page.Items))
	for i := range page.Items {
		out[i] = c.transformer.TransformCollection(&page.Items[i])
	}

	var info models.PageInfo
	switch {
	case page.Next != "":
		info = models.PageInfo{HasNextPage: true, EndCursor: source + "|" + page.Next}
	case source == sourceCustom:
		info = models.PageInfo{HasNextPage: true, EndCursor: sourceSmart + "|"}
	}
	return out, info, nil
}

func (c *Catalog) GetCollection(ctx context.Context, gid string) (*models.Collection, error) {
	id, err := ParseGID("Collection", gid)
	if err != nil {
		return nil, err
	}
	col, err := c.client.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	out := c.transformer.TransformCollection(col)
	return &out, nil
}

// ListProducts returns one page of a collection. The cursor is Shopify's
// page_info.
func (c *Catalog) ListProducts(ctx context.Context, collectionGID string, limit int, after string) ([]models.Product, models.PageInfo, error) {
	id, err := ParseGID("Collection", collectionGID)
	if err != nil {
		return nil, models.PageInfo{}, err
	}
	page, err := c.client.ListCollectionProducts(ctx, id, limit, after)
	if err != nil {
		return nil, models.PageInfo{}, err
	}
	out := make([]models.Product, len(page.Items))
	for i := range page.Items {
		out[i] = c.transformer.TransformProduct(&page.Items[i])
	}
	info := models.PageInfo{HasNextPage: page.Next != "", EndCursor: page.Next}
	return out, info, nil
}

// AllProducts drains every page of a collection.
func (c *Catalog) AllProducts(ctx context.Context, collectionGID string) ([]models.Product, error) {
	return search.CollectAll(ctx, func(ctx context.Context, limit int, after string) ([]models.Product, models.PageInfo, error) {
		return c.ListProducts(ctx, collectionGID, limit, after)
	})
}

func (c *Catalog) GetProduct(ctx context.Context, gid string) (*models.Product, error) {
	id, err := ParseGID("Product", gid)
	if err != nil {
		return nil, err
	}
	p, err := c.client.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	out := c.transformer.TransformProduct(p)
	return &out, nil
}

// CreateImage adds src to a product at position, attached to variantGIDs.
func (c *Catalog) CreateImage(ctx context.Context, productGID, src string, position int, alt *string, variantGIDs []string) (*models.ProductImage, error) {
	productID, err := ParseGID("Product", productGID)
	if err != nil {
		return nil, err
	}
	variantIDs := make([]int64, 0, len(variantGIDs))
	for _, gid := range variantGIDs {
		id, err := ParseGID("ProductVariant", gid)
		if err != nil {
			return nil, err
		}
		variantIDs = append(variantIDs, id)
	}
	img, err := c.client.CreateProductImage(ctx, productID, NewImage{
		Src:        src,
		Position:   position,
		Alt:        alt,
		VariantIDs: variantIDs,
	})
	if err != nil {
		return nil, err
	}
	out := c.transformer.TransformImage(img)
	return &out, nil
}

func (c *Catalog) DeleteImage(ctx context.Context, productGID, imageGID string) error {
	productID, err := ParseGID("Product", productGID)
	if err != nil {
		return err
	}
	imageID, err := ParseGID("ProductImage", imageGID)
	if err != nil {
		return err
	}
	return c.client.DeleteProductImage(ctx, productID, imageID)
}
