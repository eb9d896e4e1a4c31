package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tomnomnom/linkheader"

	"imageupdater/internal/logger"
)

const maxRetries = 4

// APIError is a non-2xx answer from the Admin API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
}

// Observer receives one call per HTTP attempt.
type Observer func(endpoint string, statusCode int, elapsed time.Duration)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logger.Logger
	newBackOff  func() backoff.BackOff
	observe     Observer
}

type ClientOption func(*Client)

// WithBaseURL overrides https://<shop>/admin/api/<version>.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func WithBackOff(f func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = f }
}

func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observe = o }
}

// NewClient accepts "demo" or "demo.myshopify.com" as shopDomain.
func NewClient(shopDomain, accessToken, apiVersion string, log *logger.Logger, opts ...ClientOption) *Client {
	if !strings.Contains(shopDomain, ".") {
		shopDomain += ".myshopify.com"
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopDomain, apiVersion),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		observe: func(string, int, time.Duration) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCustomCollections fetches one page of custom collections
func (c *Client) ListCustomCollections(ctx context.Context, limit int, pageInfo string) (*Page[Collection], error) {
	var resp struct {
		Collections []Collection `json:"custom_collections"`
	}
	next, err := c.get(ctx, "/custom_collections.json", pageQuery(limit, pageInfo, nil), &resp)
	if err != nil {
		return nil, err
	}
	return &Page[Collection]{Items: resp.Collections, Next: next}, nil
}

// ListSmartCollections fetches one page of smart collections
func (c *Client) ListSmartCollections(ctx context.Context, limit int, pageInfo string) (*Page[Collection], error) {
	var resp struct {
		Collections []Collection `json:"smart_collections"`
	}
	next, err := c.get(ctx, "/smart_collections.json", pageQuery(limit, pageInfo, nil), &resp)
	if err != nil {
		return nil, err
	}
	return &Page[Collection]{Items: resp.Collections, Next: next}, nil
}

// GetCollection fetches a custom or smart collection by ID
func (c *Client) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	var resp struct {
		Collection Collection `json:"collection"`
	}
	if _, err := c.get(ctx, fmt.Sprintf("/collections/%d.json", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Collection, nil
}

// ListCollectionProducts fetches one page of the products in a collection
func (c *Client) ListCollectionProducts(ctx context.Context, collectionID int64, limit int, pageInfo string) (*Page[Product], error) {
	var resp struct {
		Products []Product `json:"products"`
	}
	filter := url.Values{"collection_id": {strconv.FormatInt(collectionID, 10)}}
	next, err := c.get(ctx, "/products.json", pageQuery(limit, pageInfo, filter), &resp)
	if err != nil {
		return nil, err
	}
	return &Page[Product]{Items: resp.Products, Next: next}, nil
}

// GetProduct fetches a single product by ID
func (c *Client) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var resp struct {
		Product Product `json:"product"`
	}
	if _, err := c.get(ctx, fmt.Sprintf("/products/%d.json", productID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

// CreateProductImage adds an image to a product
func (c *Client) CreateProductImage(ctx context.Context, productID int64, image NewImage) (*Image, error) {
	payload := struct {
		Image NewImage `json:"image"`
	}{Image: image}
	var resp struct {
		Image Image `json:"image"`
	}
	path := fmt.Sprintf("/products/%d/images.json", productID)
	if _, err := c.do(ctx, http.MethodPost, path, nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Image, nil
}

// DeleteProductImage removes an image from a product
func (c *Client) DeleteProductImage(ctx context.Context, productID, imageID int64) error {
	path := fmt.Sprintf("/products/%d/images/%d.json", productID, imageID)
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

// pageQuery builds list parameters. Shopify rejects filters alongside
// page_info, so they are only sent for the first page.
func pageQuery(limit int, pageInfo string, filter url.Values) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
		return q
	}
	for k, v := range filter {
		q[k] = v
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (string, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// do runs one API call, retrying rate limits and server errors with
// exponential backoff. It returns the page_info of the rel="next" link.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) (string, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var next string
	attempt := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.observe(path, 0, time.Since(start))
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()
		c.observe(path, resp.StatusCode, time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("shopify %s %s returned %d, retrying", method, path, resp.StatusCode)
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		next = nextPageInfo(resp.Header.Get("Link"))
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	if err := backoff.Retry(attempt, b); err != nil {
		return "", err
	}
	return next, nil
}

func nextPageInfo(header string) string {
	if header == "" {
		return ""
	}
	for _, link := range linkheader.Parse(header).FilterByRel("next") {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if pi := u.Query().Get("page_info"); pi != "" {
			return pi
		}
	}
	return ""
}
