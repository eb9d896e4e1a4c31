package models

import (
	"sort"
	"time"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
	ProductStatusDraft    ProductStatus = "draft"
)

// Product is the wire shape served by /api/products. IDs are Shopify GIDs.
type Product struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	Status      ProductStatus    `json:"status"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Tags        []string         `json:"tags"`
	Variants    []ProductVariant `json:"variants"`
	Images      []ProductImage   `json:"images"`
	Options     []ProductOption  `json:"options"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ProductImage struct {
	ID       string  `json:"id"`
	Src      string  `json:"src"`
	Alt      *string `json:"alt"`
	Position int     `json:"position"`
}

type ProductVariant struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Price             string           `json:"price"`
	CompareAtPrice    *string          `json:"compare_at_price"`
	SKU               string           `json:"sku"`
	InventoryQuantity int              `json:"inventory_quantity"`
	Weight            float64          `json:"weight"`
	WeightUnit        string           `json:"weight_unit"`
	SelectedOptions   []SelectedOption `json:"selected_options"`
	// ImageID points into the owning product's Images; it may dangle.
	ImageID *string `json:"image_id"`
}

type ProductOption struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ProductsPage struct {
	Products []Product `json:"products"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// SortedImages returns the images ordered by position.
func (p *Product) SortedImages() []ProductImage {
	images := make([]ProductImage, len(p.Images))
	copy(images, p.Images)
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Position < images[j].Position
	})
	return images
}

// MainImage is the image with the lowest position, or nil.
func (p *Product) MainImage() *ProductImage {
	images := p.SortedImages()
	if len(images) == 0 {
		return nil
	}
	return &images[0]
}

func (p *Product) ImageByID(id string) *ProductImage {
	for i := range p.Images {
		if p.Images[i].ID == id {
			return &p.Images[i]
		}
	}
	return nil
}

// VariantImage resolves a variant's image reference. A dangling reference
// yields nil.
func (p *Product) VariantImage(v ProductVariant) *ProductImage {
	if v.ImageID == nil {
		return nil
	}
	return p.ImageByID(*v.ImageID)
}

// VariantIDsForImage lists the variants whose image_id is the given image.
func (p *Product) VariantIDsForImage(imageID string) []string {
	var ids []string
	for _, v := range p.Variants {
		if v.ImageID != nil && *v.ImageID == imageID {
			ids = append(ids, v.ID)
		}
	}
	return ids
}
