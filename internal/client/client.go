// Package client is the typed wrapper over the image updater REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imageupdater/internal/logger"
	"imageupdater/internal/models"
	"imageupdater/internal/search"
)

const (
	DefaultCollectionsLimit = 10
	DefaultProductsLimit    = 20
)

var (
	ErrEmptySelection = errors.New("no products selected")
	ErrNotCSV         = errors.New("file is not a CSV")
)

// RequestError is returned for any non-2xx response.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	// Message is the server's {"error": ...} text, when present.
	Message string
}

func (e *RequestError) Error() string {
	msg := "API request failed: " + e.Status
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// StatusCode extracts the HTTP status of a RequestError anywhere in the
// chain, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

type Config struct {
	BaseURL string
	Token   string
	// NativeSearch sends the query to the backend instead of draining all
	// collections and filtering locally.
	NativeSearch bool
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	baseURL      string
	nativeSearch bool
	httpClient   *http.Client
	logger       *logger.Logger
	tracer       trace.Tracer

	mu    sync.RWMutex
	token string
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		nativeSearch: cfg.NativeSearch,
		httpClient:   httpClient,
		logger:       log,
		tracer:       otel.Tracer("imageupdater/client"),
		token:        cfg.Token,
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SearchCollections returns one page of collections matching query.
func (c *Client) SearchCollections(ctx context.Context, query string, limit int, after string) (*models.CollectionsPage, error) {
	ctx, span := c.tracer.Start(ctx, "client.SearchCollections", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if limit <= 0 {
		limit = DefaultCollectionsLimit
	}
	query = strings.TrimSpace(query)
	span.SetAttributes(attribute.String("search.query", query), attribute.Int("search.limit", limit))

	if query == "" || c.nativeSearch {
		page, err := c.listCollections(ctx, limit, after, query)
		return page, recordErr(span, err)
	}

	all, err := search.CollectAll(ctx, func(ctx context.Context, limit int, after string) ([]models.Collection, models.PageInfo, error) {
		page, err := c.listCollections(ctx, limit, after, "")
		if err != nil {
			return nil, models.PageInfo{}, err
		}
		return page.Collections, page.PageInfo, nil
	})
	if err != nil {
		return nil, recordErr(span, err)
	}

	matches := search.Filter(all, query)
	items, info, err := search.Page(matches, limit, after)
	if err != nil {
		return nil, recordErr(span, err)
	}
	c.logger.Debug("search %q: %d of %d collections match", query, len(matches), len(all))
	span.SetAttributes(attribute.Int("search.matches", len(matches)))
	return &models.CollectionsPage{Collections: items, PageInfo: info}, nil
}

func (c *Client) listCollections(ctx context.Context, limit int, after, query string) (*models.CollectionsPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if after != "" {
		params.Set("after", after)
	}
	if query != "" {
		params.Set("query", query)
	}
	var page models.CollectionsPage
	if err := c.getJSON(ctx, "/api/collections", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	ctx, span := c.tracer.Start(ctx, "client.GetCollection", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp struct {
		Collection models.Collection `json:"collection"`
	}
	if err := c.getJSON(ctx, "/api/collections/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, recordErr(span, err)
	}
	return &resp.Collection, nil
}

func (c *Client) GetProductsFromCollection(ctx context.Context, collectionID string, limit int, after string) (*models.ProductsPage, error) {
	ctx, span := c.tracer.Start(ctx, "client.GetProductsFromCollection", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if limit <= 0 {
		limit = DefaultProductsLimit
	}
	params := url.Values{}
	params.Set("collection_id", collectionID)
	params.Set("limit", strconv.Itoa(limit))
	if after != "" {
		params.Set("after", after)
	}
	var page models.ProductsPage
	if err := c.getJSON(ctx, "/api/products", params, &page); err != nil {
		return nil, recordErr(span, err)
	}
	return &page, nil
}

type createOperationRequest struct {
	CollectionID string   `json:"collection_id"`
	ProductIDs   []string `json:"product_ids"`
}

type operationResponse struct {
	Operation models.ImageUpdateOperation `json:"operation"`
}

// CreateImageUpdateOperation fails with ErrEmptySelection, without any
// request, when productIDs is empty.
func (c *Client) CreateImageUpdateOperation(ctx context.Context, collectionID string, productIDs []string) (*models.ImageUpdateOperation, error) {
	if len(productIDs) == 0 {
		return nil, ErrEmptySelection
	}
	ctx, span := c.tracer.Start(ctx, "client.CreateImageUpdateOperation", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("collection.id", collectionID), attribute.Int("products.count", len(productIDs)))

	var resp operationResponse
	body := createOperationRequest{CollectionID: collectionID, ProductIDs: productIDs}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/image-updates/operation", body, &resp); err != nil {
		return nil, recordErr(span, err)
	}
	return &resp.Operation, nil
}

func (c *Client) GetImageUpdateOperation(ctx context.Context, operationID string) (*models.ImageUpdateOperation, error) {
	ctx, span := c.tracer.Start(ctx, "client.GetImageUpdateOperation", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp operationResponse
	if err := c.getJSON(ctx, operationPath(operationID), nil, &resp); err != nil {
		return nil, recordErr(span, err)
	}
	return &resp.Operation, nil
}

// DownloadImageUpdateCSV returns the raw CSV template of a pending operation.
func (c *Client) DownloadImageUpdateCSV(ctx context.Context, operationID string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "client.DownloadImageUpdateCSV", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := c.do(ctx, http.MethodGet, operationPath(operationID)+"/csv", nil, nil, "")
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("failed to download CSV: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("failed to download CSV: %w", err))
	}
	span.SetAttributes(attribute.Int("csv.bytes", len(data)))
	return data, nil
}

// UploadImageUpdateCSV sends file as the multipart field "csv".
func (c *Client) UploadImageUpdateCSV(ctx context.Context, operationID string, file *CSVFile) (*models.ProcessResult, error) {
	if file == nil {
		return nil, ErrNotCSV
	}
	ctx, span := c.tracer.Start(ctx, "client.UploadImageUpdateCSV", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, contentType, err := file.multipart()
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("failed to upload CSV: %w", err))
	}
	resp, err := c.do(ctx, http.MethodPost, operationPath(operationID)+"/upload", nil, body, contentType)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("failed to upload CSV: %w", err))
	}
	defer resp.Body.Close()

	var result models.ProcessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, recordErr(span, err)
	}
	return &result, nil
}

// ProcessImageUpdates starts applying the uploaded plan. The returned
// message is advisory; re-fetch the operation for its real state.
func (c *Client) ProcessImageUpdates(ctx context.Context, operationID string) (*models.ProcessResult, error) {
	ctx, span := c.tracer.Start(ctx, "client.ProcessImageUpdates", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var result models.ProcessResult
	if err := c.sendJSON(ctx, http.MethodPost, operationPath(operationID)+"/process", nil, &result); err != nil {
		return nil, recordErr(span, err)
	}
	return &result, nil
}

func (c *Client) GetOperationHistory(ctx context.Context) ([]models.ImageUpdateOperation, error) {
	ctx, span := c.tracer.Start(ctx, "client.GetOperationHistory", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp struct {
		Operations []models.ImageUpdateOperation `json:"operations"`
	}
	if err := c.getJSON(ctx, "/api/operations/history", nil, &resp); err != nil {
		return nil, recordErr(span, err)
	}
	return resp.Operations, nil
}

func (c *Client) RollbackOperation(ctx context.Context, operationID string) (*models.ProcessResult, error) {
	ctx, span := c.tracer.Start(ctx, "client.RollbackOperation", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var result models.ProcessResult
	path := "/api/operations/" + url.PathEscape(operationID) + "/rollback"
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, recordErr(span, err)
	}
	return &result, nil
}

// RepeatOperation replays a finished operation and returns the new one.
func (c *Client) RepeatOperation(ctx context.Context, operationID string) (*models.ImageUpdateOperation, error) {
	ctx, span := c.tracer.Start(ctx, "client.RepeatOperation", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp struct {
		models.ProcessResult
		Operation models.ImageUpdateOperation `json:"operation"`
	}
	path := "/api/operations/" + url.PathEscape(operationID) + "/repeat"
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, recordErr(span, err)
	}
	return &resp.Operation, nil
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login exchanges the gate password for a session token and keeps it for
// later calls.
func (c *Client) Login(ctx context.Context, password string) (*Session, error) {
	ctx, span := c.tracer.Start(ctx, "client.Login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var s Session
	body := map[string]string{"password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/auth/session", body, &s); err != nil {
		return nil, recordErr(span, err)
	}
	c.SetToken(s.Token)
	return &s, nil
}

// Logout revokes the session server side. The local token is dropped even
// when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "client.Logout", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	defer c.SetToken("")

	if c.Token() == "" {
		return nil
	}
	resp, err := c.do(ctx, http.MethodDelete, "/api/auth/session", nil, nil, "")
	if err != nil {
		return recordErr(span, err)
	}
	resp.Body.Close()
	return nil
}

func operationPath(id string) string {
	return "/api/image-updates/operation/" + url.PathEscape(id)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, nil, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// do performs the request and turns non-2xx answers into *RequestError. The
// caller closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var payload struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &payload)
		return nil, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    payload.Error,
		}
	}
	return resp, nil
}

func recordErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := StatusCode(err); code != 0 {
			span.SetAttributes(attribute.Int("http.status_code", code))
		}
	}
	return err
}
