package shopify

import (
	"time"
)

// Product represents a Shopify product
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	BodyHTML    string    `json:"body_html"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Handle      string    `json:"handle"`
	Status      string    `json:"status"`
	Tags        string    `json:"tags"`
	Variants    []Variant `json:"variants"`
	Images      []Image   `json:"images"`
	Options     []Option  `json:"options"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant represents a product variant
type Variant struct {
	ID                int64     `json:"id"`
	ProductID         int64     `json:"product_id"`
	Title             string    `json:"title"`
	Price             string    `json:"price"`
	Sku               string    `json:"sku"`
	Position          int       `json:"position"`
	CompareAtPrice    *string   `json:"compare_at_price"`
	Option1           *string   `json:"option1"`
	Option2           *string   `json:"option2"`
	Option3           *string   `json:"option3"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ImageID           *int64    `json:"image_id"`
	Weight            float64   `json:"weight"`
	WeightUnit        string    `json:"weight_unit"`
	InventoryQuantity int       `json:"inventory_quantity"`
}

// Image represents a product image
type Image struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Alt        *string   `json:"alt"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Src        string    `json:"src"`
	VariantIDs []int64   `json:"variant_ids"`
}

// NewImage is the payload of POST products/{id}/images.json. Shopify
// downloads Src and rehosts it.
type NewImage struct {
	Src        string  `json:"src"`
	Position   int     `json:"position,omitempty"`
	Alt        *string `json:"alt,omitempty"`
	VariantIDs []int64 `json:"variant_ids,omitempty"`
}

// Option represents a product option
type Option struct {
	ID        int64    `json:"id"`
	ProductID int64    `json:"product_id"`
	Name      string   `json:"name"`
	Position  int      `json:"position"`
	Values    []string `json:"values"`
}

// Collection covers both custom and smart collections
type Collection struct {
	ID            int64            `json:"id"`
	Handle        string           `json:"handle"`
	Title         string           `json:"title"`
	BodyHTML      string           `json:"body_html"`
	ProductsCount int              `json:"products_count"`
	Image         *CollectionImage `json:"image"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type CollectionImage struct {
	Src string  `json:"src"`
	Alt *string `json:"alt"`
}

// Page is one page of a cursor-paginated list. Next is the page_info of
// the following page, empty on the last one.
type Page[T any] struct {
	Items []T
	Next  string
}
