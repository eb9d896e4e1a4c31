package imageupdate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"imageupdater/internal/models"
)

// fakeCatalog is an in-memory store with Shopify's position semantics.
type fakeCatalog struct {
	mu          sync.Mutex
	collections map[string]models.Collection
	members     map[string][]string
	products    map[string]*models.Product
	nextImage   int
	mutations   int
	failSrc     map[string]bool
	calls       int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		collections: map[string]models.Collection{},
		members:     map[string][]string{},
		products:    map[string]*models.Product{},
		nextImage:   1000,
		failSrc:     map[string]bool{},
	}
}

func (f *fakeCatalog) addCollection(id, title string, products ...*models.Product) {
	f.collections[id] = models.Collection{ID: id, Title: title, ProductsCount: len(products)}
	for _, p := range products {
		f.products[p.ID] = p
		f.members[id] = append(f.members[id], p.ID)
	}
}

func (f *fakeCatalog) GetCollection(ctx context.Context, gid string) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	c, ok := f.collections[gid]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", gid, errNotFound)
	}
	return &c, nil
}

func (f *fakeCatalog) AllProducts(ctx context.Context, collectionGID string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []models.Product
	for _, id := range f.members[collectionGID] {
		out = append(out, clone(f.products[id]))
	}
	return out, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, gid string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.products[gid]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", gid, errNotFound)
	}
	c := clone(p)
	return &c, nil
}

func (f *fakeCatalog) CreateImage(ctx context.Context, productGID, src string, position int, alt *string, variantGIDs []string) (*models.ProductImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failSrc[src] {
		return nil, fmt.Errorf("image %s could not be downloaded", src)
	}
	p := f.products[productGID]
	f.nextImage++
	f.mutations++
	img := models.ProductImage{
		ID:       fmt.Sprintf("gid://shopify/ProductImage/%d", f.nextImage),
		Src:      src,
		Alt:      alt,
		Position: position,
	}
	if position < 1 || position > len(p.Images)+1 {
		img.Position = len(p.Images) + 1
	}
	for i := range p.Images {
		if p.Images[i].Position >= img.Position {
			p.Images[i].Position++
		}
	}
	p.Images = append(p.Images, img)
	sortImages(p)
	for _, vid := range variantGIDs {
		for i := range p.Variants {
			if p.Variants[i].ID == vid {
				id := img.ID
				p.Variants[i].ImageID = &id
			}
		}
	}
	return &img, nil
}

func (f *fakeCatalog) DeleteImage(ctx context.Context, productGID, imageGID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p := f.products[productGID]
	kept := p.Images[:0]
	found := false
	for _, img := range p.Images {
		if img.ID == imageGID {
			found = true
			continue
		}
		kept = append(kept, img)
	}
	if !found {
		return fmt.Errorf("image %s: %w", imageGID, errNotFound)
	}
	f.mutations++
	p.Images = kept
	sortImages(p)
	for i := range p.Images {
		p.Images[i].Position = i + 1
	}
	for i := range p.Variants {
		if v := p.Variants[i].ImageID; v != nil && *v == imageGID {
			p.Variants[i].ImageID = nil
		}
	}
	return nil
}

func (f *fakeCatalog) product(id string) models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.products[id])
}

func (f *fakeCatalog) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

var errNotFound = errors.New("not found")

func sortImages(p *models.Product) {
	sort.SliceStable(p.Images, func(i, j int) bool { return p.Images[i].Position < p.Images[j].Position })
}

func clone(p *models.Product) models.Product {
	c := *p
	c.Images = append([]models.ProductImage(nil), p.Images...)
	c.Variants = make([]models.ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		c.Variants[i] = v
		if v.ImageID != nil {
			id := *v.ImageID
			c.Variants[i].ImageID = &id
		}
	}
	return c
}

func strPtr(s string) *string { return &s }

// tee has two images; the first is shown by both variants.
func tee() *models.Product {
	img1 := "gid://shopify/ProductImage/1"
	return &models.Product{
		ID:     "gid://shopify/Product/1",
		Title:  "Tee",
		Handle: "tee",
		Images: []models.ProductImage{
			{ID: img1, Src: "https://cdn.example.com/tee-front.png", Alt: strPtr("Front"), Position: 1},
			{ID: "gid://shopify/ProductImage/2", Src: "https://cdn.example.com/tee-back.png", Position: 2},
		},
		Variants: []models.ProductVariant{
			{ID: "gid://shopify/ProductVariant/11", Title: "S", ImageID: &img1},
			{ID: "gid://shopify/ProductVariant/12", Title: "M", ImageID: &img1},
		},
	}
}

func hat() *models.Product {
	return &models.Product{
		ID:       "gid://shopify/Product/2",
		Title:    "Hat",
		Handle:   "hat",
		Variants: []models.ProductVariant{{ID: "gid://shopify/ProductVariant/21", Title: "Default"}},
	}
}
