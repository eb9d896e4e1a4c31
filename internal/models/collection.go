package models

type Collection struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Handle        string           `json:"handle"`
	ProductsCount int              `json:"products_count"`
	Image         *CollectionImage `json:"image,omitempty"`
}

type CollectionImage struct {
	Src string  `json:"src"`
	Alt *string `json:"alt"`
}

// PageInfo carries an opaque cursor. EndCursor is only meaningful when
// HasNextPage is true.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

type CollectionsPage struct {
	Collections []Collection `json:"collections"`
	PageInfo    PageInfo     `json:"pageInfo"`
}

// Title and handle accessors let collections feed the generic search filter.
func (c Collection) SearchTitle() string  { return c.Title }
func (c Collection) SearchHandle() string { return c.Handle }
