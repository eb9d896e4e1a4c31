package shopify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"imageupdater/internal/models"
)

const gidPrefix = "gid://shopify/"

var ErrInvalidGID = errors.New("invalid id")

// FormatGID builds gid://shopify/<kind>/<id>
func FormatGID(kind string, id int64) string {
	return gidPrefix + kind + "/" + strconv.FormatInt(id, 10)
}

// ParseGID accepts a GID of the given kind or a bare numeric id.
func ParseGID(kind, gid string) (int64, error) {
	raw := gid
	if strings.HasPrefix(gid, gidPrefix) {
		rest := strings.TrimPrefix(gid, gidPrefix)
		k, id, ok := strings.Cut(rest, "/")
		if !ok || k != kind {
			return 0, fmt.Errorf("%w: %s %q", ErrInvalidGID, kind, gid)
		}
		raw = id
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidGID, kind, gid)
	}
	return id, nil
}

type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// TransformCollection converts a Shopify collection to the wire shape
func (t *Transformer) TransformCollection(c *Collection) models.Collection {
	out := models.Collection{
		ID:            FormatGID("Collection", c.ID),
		Title:         c.Title,
		Description:   c.BodyHTML,
		Handle:        c.Handle,
		ProductsCount: c.ProductsCount,
	}
	if c.Image != nil && c.Image.Src != "" {
		out.Image = &models.CollectionImage{Src: c.Image.Src, Alt: c.Image.Alt}
	}
	return out
}

// TransformProduct converts a Shopify product to the wire shape
func (t *Transformer) TransformProduct(p *Product) models.Product {
	out := models.Product{
		ID:          FormatGID("Product", p.ID),
		Title:       p.Title,
		Handle:      p.Handle,
		Status:      models.ProductStatus(strings.ToLower(p.Status)),
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        splitTags(p.Tags),
		Images:      make([]models.ProductImage, len(p.Images)),
		Variants:    make([]models.ProductVariant, len(p.Variants)),
		Options:     make([]models.ProductOption, len(p.Options)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for i, img := range p.Images {
		out.Images[i] = t.TransformImage(&img)
	}
	for i, o := range p.Options {
		out.Options[i] = models.ProductOption{
			ID:       FormatGID("ProductOption", o.ID),
			Name:     o.Name,
			Position: o.Position,
			Values:   o.Values,
		}
	}
	for i, v := range p.Variants {
		out.Variants[i] = t.transformVariant(&v, p.Options)
	}
	return out
}

func (t *Transformer) TransformImage(img *Image) models.ProductImage {
	return models.ProductImage{
		ID:       FormatGID("ProductImage", img.ID),
		Src:      img.Src,
		Alt:      img.Alt,
		Position: img.Position,
	}
}

func (t *Transformer) transformVariant(v *Variant, options []Option) models.ProductVariant {
	out := models.ProductVariant{
		ID:                FormatGID("ProductVariant", v.ID),
		Title:             v.Title,
		Price:             v.Price,
		CompareAtPrice:    v.CompareAtPrice,
		SKU:               v.Sku,
		InventoryQuantity: v.InventoryQuantity,
		Weight:            v.Weight,
		WeightUnit:        v.WeightUnit,
	}
	if v.ImageID != nil {
		id := FormatGID("ProductImage", *v.ImageID)
		out.ImageID = &id
	}
	for i, value := range []*string{v.Option1, v.Option2, v.Option3} {
		if value == nil {
			continue
		}
		name := fmt.Sprintf("Option%d", i+1)
		for _, o := range options {
			if o.Position == i+1 {
				name = o.Name
			}
		}
		out.SelectedOptions = append(out.SelectedOptions, models.SelectedOption{Name: name, Value: *value})
	}
	return out
}

func splitTags(tags string) []string {
	out := []string{}
	if tags == "" {
		return out
	}
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
