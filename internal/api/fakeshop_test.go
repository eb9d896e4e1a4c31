package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"imageupdater/internal/services/shopify"
)

// fakeShop serves the slice of the Admin REST API the backend uses. List
// endpoints page by offset, at most pageSize items per page.
type fakeShop struct {
	mu        sync.Mutex
	url       string
	pageSize  int
	custom    []shopify.Collection
	smart     []shopify.Collection
	members   map[int64][]int64
	products  map[int64]*shopify.Product
	nextImage int64
}

func newFakeShop(t *testing.T) *fakeShop {
	t.Helper()
	s := &fakeShop{
		pageSize:  2,
		members:   map[int64][]int64{},
		products:  map[int64]*shopify.Product{},
		nextImage: 500,
	}
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(srv.Close)
	s.url = srv.URL
	return s
}

func (s *fakeShop) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("X-Shopify-Access-Token") == "" {
		http.Error(w, `{"errors":"[API] Invalid API key or access token"}`, http.StatusUnauthorized)
		return
	}

	path := strings.TrimSuffix(r.URL.Path, ".json")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && path == "/custom_collections":
		s.page(w, r, "custom_collections", s.custom)
	case r.Method == http.MethodGet && path == "/smart_collections":
		s.page(w, r, "smart_collections", s.smart)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "collections":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		for _, c := range append(append([]shopify.Collection{}, s.custom...), s.smart...) {
			if c.ID == id {
				writeJSON(w, map[string]interface{}{"collection": c})
				return
			}
		}
		http.Error(w, `{"errors":"Not Found"}`, http.StatusNotFound)
	case r.Method == http.MethodGet && path == "/products":
		q := r.URL.Query()
		colID, _ := strconv.ParseInt(q.Get("collection_id"), 10, 64)
		if pi := q.Get("page_info"); pi != "" {
			colID, _ = strconv.ParseInt(strings.SplitN(pi, ":", 2)[0], 10, 64)
		}
		var items []shopify.Product
		for _, id := range s.members[colID] {
			items = append(items, *s.products[id])
		}
		s.page(w, r, "products", items)
	case len(parts) == 2 && parts[0] == "products" && r.Method == http.MethodGet:
		p := s.product(parts[1])
		if p == nil {
			http.Error(w, `{"errors":"Not Found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]interface{}{"product": p})
	case len(parts) == 3 && parts[0] == "products" && parts[2] == "images" && r.Method == http.MethodPost:
		p := s.product(parts[1])
		var body struct {
			Image shopify.NewImage `json:"image"`
		}
		if p == nil || json.NewDecoder(r.Body).Decode(&body) != nil {
			http.Error(w, `{"errors":"bad request"}`, http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, map[string]interface{}{"image": s.addImage(p, body.Image)})
	case len(parts) == 4 && parts[0] == "products" && parts[2] == "images" && r.Method == http.MethodDelete:
		p := s.product(parts[1])
		imageID, _ := strconv.ParseInt(parts[3], 10, 64)
		if p == nil || !s.removeImage(p, imageID) {
			http.Error(w, `{"errors":"Not Found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte("{}"))
	default:
		http.Error(w, `{"errors":"Not Found"}`, http.StatusNotFound)
	}
}

// page writes items[offset:offset+limit]. page_info is "<scope>:<offset>"
// so product pages remember their collection.
func (s *fakeShop) page(w http.ResponseWriter, r *http.Request, key string, items interface{}) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	scope := q.Get("collection_id")
	offset := 0
	if pi := q.Get("page_info"); pi != "" {
		parts := strings.SplitN(pi, ":", 2)
		scope = parts[0]
		offset, _ = strconv.Atoi(parts[1])
	}

	var n int
	var slice interface{}
	switch v := items.(type) {
	case []shopify.Collection:
		n = len(v)
		slice = v[min(offset, n):min(offset+limit, n)]
	case []shopify.Product:
		n = len(v)
		slice = v[min(offset, n):min(offset+limit, n)]
	}
	if offset+limit < n {
		next := fmt.Sprintf("%s%s?limit=%d&page_info=%s:%d", s.url, r.URL.Path, limit, scope, offset+limit)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}
	writeJSON(w, map[string]interface{}{key: slice})
}

func (s *fakeShop) product(raw string) *shopify.Product {
	id, _ := strconv.ParseInt(raw, 10, 64)
	return s.products[id]
}

func (s *fakeShop) addImage(p *shopify.Product, in shopify.NewImage) shopify.Image {
	s.nextImage++
	img := shopify.Image{ID: s.nextImage, ProductID: p.ID, Src: in.Src, Alt: in.Alt, Position: in.Position, VariantIDs: in.VariantIDs}
	if img.Position < 1 || img.Position > len(p.Images)+1 {
		img.Position = len(p.Images) + 1
	}
	for i := range p.Images {
		if p.Images[i].Position >= img.Position {
			p.Images[i].Position++
		}
	}
	p.Images = append(p.Images, img)
	sort.SliceStable(p.Images, func(i, j int) bool { return p.Images[i].Position < p.Images[j].Position })
	for _, vid := range in.VariantIDs {
		for i := range p.Variants {
			if p.Variants[i].ID == vid {
				id := img.ID
				p.Variants[i].ImageID = &id
			}
		}
	}
	return img
}

func (s *fakeShop) removeImage(p *shopify.Product, imageID int64) bool {
	for i, img := range p.Images {
		if img.ID != imageID {
			continue
		}
		p.Images = append(p.Images[:i], p.Images[i+1:]...)
		for j := range p.Images {
			p.Images[j].Position = j + 1
		}
		for j := range p.Variants {
			if v := p.Variants[j].ImageID; v != nil && *v == imageID {
				p.Variants[j].ImageID = nil
			}
		}
		return true
	}
	return false
}

// snapshot returns a copy of product id.
func (s *fakeShop) snapshot(id int64) shopify.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.products[id]
	p.Images = append([]shopify.Image(nil), p.Images...)
	p.Variants = append([]shopify.Variant(nil), p.Variants...)
	return p
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// seedSummer builds scenario c1: collection "Summer" (7) holding a tee with
// two images and a hat without any, among a few other collections.
func (s *fakeShop) seedSummer() {
	s.custom = []shopify.Collection{
		{ID: 7, Title: "Summer", Handle: "summer", ProductsCount: 2},
		{ID: 8, Title: "Winter", Handle: "winter"},
		{ID: 9, Title: "Accessories", Handle: "summer-accessories"},
		{ID: 10, Title: "Spring", Handle: "spring"},
		{ID: 11, Title: "Autumn", Handle: "autumn"},
	}
	s.smart = []shopify.Collection{{ID: 20, Title: "Sale", Handle: "sale"}}

	front := int64(101)
	alt := "Front"
	s.products[1] = &shopify.Product{
		ID: 1, Title: "Tee", Handle: "tee", Status: "active",
		Images: []shopify.Image{
			{ID: 101, ProductID: 1, Src: "https://cdn.example.com/tee-front.png", Alt: &alt, Position: 1, VariantIDs: []int64{11, 12}},
			{ID: 102, ProductID: 1, Src: "https://cdn.example.com/tee-back.png", Position: 2},
		},
		Variants: []shopify.Variant{
			{ID: 11, ProductID: 1, Title: "S", Price: "20.00", ImageID: &front},
			{ID: 12, ProductID: 1, Title: "M", Price: "20.00", ImageID: &front},
		},
	}
	s.products[2] = &shopify.Product{
		ID: 2, Title: "Hat", Handle: "hat", Status: "active",
		Variants: []shopify.Variant{{ID: 21, ProductID: 2, Title: "Default Title", Price: "15.00"}},
	}
	s.members[7] = []int64{1, 2}
}
