// Package imageupdate runs bulk product image updates: an operation is
// created for a selection of products, exchanged as a CSV plan, applied
// against the store and can be rolled back or repeated.
package imageupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"imageupdater/internal/apperr"
	"imageupdater/internal/logger"
	"imageupdater/internal/metrics"
	"imageupdater/internal/models"
	"imageupdater/internal/search"
	"imageupdater/internal/services/shopify"
	"imageupdater/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	defaultMaxUpload    = 5 << 20
)

// Catalog is the store the service reads and mutates.
type Catalog interface {
	GetCollection(ctx context.Context, gid string) (*models.Collection, error)
	AllProducts(ctx context.Context, collectionGID string) ([]models.Product, error)
	GetProduct(ctx context.Context, gid string) (*models.Product, error)
	CreateImage(ctx context.Context, productGID, src string, position int, alt *string, variantGIDs []string) (*models.ProductImage, error)
	DeleteImage(ctx context.Context, productGID, imageGID string) error
}

// Dispatcher hands a processing operation to whatever applies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, operationID string) error
}

type Service struct {
	db         *gorm.DB
	catalog    Catalog
	snapshots  *storage.Snapshots
	dispatcher Dispatcher
	validate   *validator.Validate
	metrics    *metrics.Metrics
	logger     *logger.Logger
	shopDomain string
	maxUpload  int64
}

type Option func(*Service)

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithMaxUploadSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func WithShopDomain(domain string) Option {
	return func(s *Service) { s.shopDomain = domain }
}

// NewService applies operations inline unless WithDispatcher is given.
func NewService(db *gorm.DB, catalog Catalog, snapshots *storage.Snapshots, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		db:        db,
		catalog:   catalog,
		snapshots: snapshots,
		validate:  validator.New(),
		logger:    log,
		maxUpload: defaultMaxUpload,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = NewInlineDispatcher(s, log)
	}
	return s
}

func (s *Service) Dispatcher() Dispatcher {
	return s.dispatcher
}

type CreateRequest struct {
	CollectionID string
	ProductIDs   []string
	UserID       string
	UserName     string
}

// Create snapshots the selected products and stores one plan row per image,
// plus an append row for products without images.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.ImageUpdateOperation, error) {
	if req.CollectionID == "" {
		return nil, apperr.InvalidErr("collection_id is required")
	}
	ids := dedupe(req.ProductIDs)
	if len(ids) == 0 {
		return nil, apperr.InvalidErr("product_ids must not be empty")
	}

	col, err := s.catalog.GetCollection(ctx, req.CollectionID)
	if err != nil {
		return nil, upstreamErr(err, "collection not found")
	}
	all, err := s.catalog.AllProducts(ctx, col.ID)
	if err != nil {
		return nil, upstreamErr(err, "collection not found")
	}
	byID := make(map[string]models.Product, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}
	selected := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, apperr.InvalidErrf("product %s is not in collection %s", id, col.Title)
		}
		selected = append(selected, p)
	}

	op := &models.ImageUpdateOperation{
		OperationID:    ulid.Make().String(),
		ShopDomain:     s.shopDomain,
		UserID:         req.UserID,
		UserName:       req.UserName,
		CollectionID:   col.ID,
		CollectionName: col.Title,
		ProductIDs:     ids,
		Status:         models.OperationStatusPending,
		ProductsCount:  len(ids),
	}
	key, err := s.snapshots.Save(ctx, &storage.Snapshot{
		OperationID:  op.OperationID,
		Kind:         storage.SnapshotBefore,
		CollectionID: col.ID,
		Products:     selected,
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	op.BeforeSnapshotS3Key = key

	rows := templateRows(op.OperationID, col.Title, selected)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(op).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("failed to store operation: %w", err))
	}

	s.metrics.OperationReached(string(op.Status))
	s.logger.Info("Created image update operation %s for %d products of %s", op.OperationID, len(ids), col.Title)
	return op, nil
}

func templateRows(operationID, collectionName string, products []models.Product) []models.ImageUpdateRow {
	var rows []models.ImageUpdateRow
	add := func(r models.ImageUpdateRow) {
		r.OperationID = operationID
		r.RowNumber = len(rows) + 1
		r.CollectionName = collectionName
		rows = append(rows, r)
	}
	for _, p := range products {
		images := p.SortedImages()
		if len(images) == 0 {
			add(models.ImageUpdateRow{ProductID: p.ID, ProductHandle: p.Handle})
			continue
		}
		for _, img := range images {
			add(models.ImageUpdateRow{
				ProductID:       p.ID,
				ProductHandle:   p.Handle,
				CurrentImageID:  img.ID,
				CurrentImageSrc: img.Src,
			})
		}
	}
	return rows
}

func (s *Service) Get(ctx context.Context, id string) (*models.ImageUpdateOperation, error) {
	var op models.ImageUpdateOperation
	err := s.db.WithContext(ctx).First(&op, "operation_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("operation not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &op, nil
}

// History lists operations newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.ImageUpdateOperation, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	ops := []models.ImageUpdateOperation{}
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("operation_id DESC").Limit(limit).Find(&ops).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return ops, nil
}

func (s *Service) rows(ctx context.Context, operationID string) ([]models.ImageUpdateRow, error) {
	var rows []models.ImageUpdateRow
	err := s.db.WithContext(ctx).Where("operation_id = ?", operationID).Order("line_no").Find(&rows).Error
	return rows, err
}

func (s *Service) setStatus(ctx context.Context, op *models.ImageUpdateOperation, status models.OperationStatus, fields map[string]interface{}) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = status
	if err := s.db.WithContext(ctx).Model(op).Updates(fields).Error; err != nil {
		return err
	}
	op.Status = status
	s.metrics.OperationReached(string(status))
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// upstreamErr classifies a catalog failure.
func upstreamErr(err error, notFound string) error {
	var apiErr *shopify.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return apperr.NotFoundErr(notFound)
	case errors.Is(err, shopify.ErrInvalidGID), errors.Is(err, search.ErrInvalidCursor):
		return apperr.InvalidErr(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFoundErr(notFound)
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Wrap(err)
}
