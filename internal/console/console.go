// Package console is the view-model shared by the CLI and the terminal UI.
// It owns the tracker and the selection and turns user intents into API
// calls, discarding responses that a newer request has superseded.
package console

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"imageupdater/internal/client"
	"imageupdater/internal/logger"
	"imageupdater/internal/models"
	"imageupdater/internal/operation"
	"imageupdater/internal/selection"
)

// ProductsPageSize is how many products are loaded for a collection.
const ProductsPageSize = 50

var ErrSuperseded = errors.New("superseded by a newer request")

type Slot int

const (
	SlotSearch Slot = iota
	SlotProducts
	SlotOperation
	SlotUpload
)

func (s Slot) String() string {
	return [...]string{"search", "products", "operation", "upload"}[s]
}

type API interface {
	operation.API
	SearchCollections(ctx context.Context, query string, limit int, after string) (*models.CollectionsPage, error)
	GetProductsFromCollection(ctx context.Context, collectionID string, limit int, after string) (*models.ProductsPage, error)
}

type Console struct {
	api       API
	tracker   *operation.Tracker
	selection *selection.Set
	logger    *logger.Logger

	mu          sync.Mutex
	generation  map[Slot]uint64
	cancel      map[Slot]context.CancelFunc
	loading     map[Slot]bool
	errs        map[Slot]string
	query       string
	collections []models.Collection
	pageInfo    models.PageInfo
	collection  *models.Collection
	products    []models.Product
}

func New(api API, log *logger.Logger) *Console {
	if log == nil {
		log = logger.Nop()
	}
	return &Console{
		api:        api,
		tracker:    operation.NewTracker(api),
		selection:  selection.New(),
		logger:     log,
		generation: map[Slot]uint64{},
		cancel:     map[Slot]context.CancelFunc{},
		loading:    map[Slot]bool{},
		errs:       map[Slot]string{},
	}
}

func (c *Console) Tracker() *operation.Tracker {
	return c.tracker
}

func (c *Console) Selection() *selection.Set {
	return c.selection
}

// begin stamps a new generation for slot and cancels the request it
// replaces.
func (c *Console) begin(ctx context.Context, slot Slot) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(ctx, slot)
}

func (c *Console) beginLocked(ctx context.Context, slot Slot) (context.Context, uint64) {
	if cancel := c.cancel[slot]; cancel != nil {
		cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.generation[slot]++
	c.cancel[slot] = cancel
	c.loading[slot] = true
	return ctx, c.generation[slot]
}

// current must be called with c.mu held.
func (c *Console) current(slot Slot, gen uint64) bool {
	return c.generation[slot] == gen
}

// settle must be called with c.mu held and only for the current generation.
func (c *Console) settle(slot Slot, err error) {
	c.loading[slot] = false
	if cancel := c.cancel[slot]; cancel != nil {
		cancel()
		delete(c.cancel, slot)
	}
	c.setErr(slot, err)
}

func (c *Console) setErr(slot Slot, err error) {
	if err != nil {
		c.errs[slot] = err.Error()
	} else {
		delete(c.errs, slot)
	}
}

// Search loads one page of collections matching query. A response for an
// older search is dropped and ErrSuperseded returned.
func (c *Console) Search(ctx context.Context, query, after string) (*models.CollectionsPage, error) {
	ctx, gen := c.begin(ctx, SlotSearch)
	page, err := c.api.SearchCollections(ctx, query, client.DefaultCollectionsLimit, after)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(SlotSearch, gen) {
		c.logger.Debug("dropping stale search response for %q", query)
		return nil, ErrSuperseded
	}
	c.settle(SlotSearch, err)
	if err != nil {
		return nil, err
	}
	c.query = query
	c.collections = page.Collections
	c.pageInfo = page.PageInfo
	return page, nil
}

// SelectCollection makes col the loaded collection and fetches its
// products. The selection is cleared immediately, and any product load
// still in flight for the previous collection is superseded.
func (c *Console) SelectCollection(ctx context.Context, col models.Collection) ([]models.Product, error) {
	c.mu.Lock()
	ctx, gen := c.beginLocked(ctx, SlotProducts)
	c.collection = &col
	c.products = nil
	c.selection.Load(nil)
	c.mu.Unlock()
	return c.loadProducts(ctx, gen, col.ID, false)
}

// ReloadProducts refetches the loaded collection. Products still present
// stay selected.
func (c *Console) ReloadProducts(ctx context.Context) ([]models.Product, error) {
	c.mu.Lock()
	col := c.collection
	if col == nil {
		c.mu.Unlock()
		return nil, errors.New("no collection loaded")
	}
	ctx, gen := c.beginLocked(ctx, SlotProducts)
	c.mu.Unlock()
	return c.loadProducts(ctx, gen, col.ID, true)
}

func (c *Console) loadProducts(ctx context.Context, gen uint64, collectionID string, keepSelection bool) ([]models.Product, error) {
	page, err := c.api.GetProductsFromCollection(ctx, collectionID, ProductsPageSize, "")

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(SlotProducts, gen) {
		c.logger.Debug("dropping stale products response for %s", collectionID)
		return nil, ErrSuperseded
	}
	c.settle(SlotProducts, err)
	if err != nil {
		return nil, err
	}
	c.products = page.Products
	ids := make([]string, len(page.Products))
	for i, p := range page.Products {
		ids[i] = p.ID
	}
	if keepSelection {
		c.selection.Restore(ids, c.selection.IDs())
	} else {
		c.selection.Load(ids)
	}
	return page.Products, nil
}

// Restore rebuilds the working state saved by an earlier CLI run.
func (c *Console) Restore(ctx context.Context, col models.Collection, selected []string, op *models.ImageUpdateOperation) error {
	if col.ID != "" {
		if _, err := c.SelectCollection(ctx, col); err != nil {
			return err
		}
		c.selection.Restore(c.selection.Loaded(), selected)
	}
	if op != nil {
		return c.tracker.Resume(op)
	}
	return nil
}

func (c *Console) Toggle(id string) bool {
	return c.selection.Toggle(id)
}

func (c *Console) SelectAll() {
	c.selection.SelectAll()
}

func (c *Console) ClearSelection() {
	c.selection.Clear()
}

func (c *Console) CreateOperation(ctx context.Context) (*models.ImageUpdateOperation, error) {
	c.mu.Lock()
	col := c.collection
	c.mu.Unlock()
	if col == nil {
		return nil, c.fail(SlotOperation, errors.New("no collection loaded"))
	}
	op, err := c.tracker.Create(ctx, col.ID, c.selection.IDs())
	return op, c.fail(SlotOperation, err)
}

// DownloadCSV writes the template to dir as image-updates-<id>.csv and
// returns the path. The file is closed before returning.
func (c *Console) DownloadCSV(ctx context.Context, dir string) (string, error) {
	data, err := c.tracker.Download(ctx)
	if err != nil {
		return "", c.fail(SlotOperation, fmt.Errorf("failed to download CSV: %w", err))
	}
	op := c.tracker.Operation()
	path := filepath.Join(dir, fmt.Sprintf("image-updates-%s.csv", op.OperationID))
	if err := writeFile(path, data); err != nil {
		return "", c.fail(SlotOperation, err)
	}
	c.fail(SlotOperation, nil)
	return path, nil
}

func writeFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// UploadCSV checks the file type locally before anything is sent.
func (c *Console) UploadCSV(ctx context.Context, path string) (*models.ProcessResult, error) {
	file, err := client.OpenCSVFile(path)
	if err != nil {
		return nil, c.fail(SlotUpload, err)
	}
	result, err := c.tracker.Upload(ctx, file)
	if err != nil {
		return nil, c.fail(SlotUpload, fmt.Errorf("failed to upload CSV: %w", err))
	}
	c.fail(SlotUpload, nil)
	return result, nil
}

// ProcessUpdates applies the plan and reloads the products once the
// operation has completed so the new images show.
func (c *Console) ProcessUpdates(ctx context.Context) (*models.ProcessResult, error) {
	result, err := c.tracker.Process(ctx)
	if err != nil {
		return result, c.fail(SlotOperation, err)
	}
	c.fail(SlotOperation, nil)
	if c.tracker.State() == operation.Completed {
		if _, err := c.ReloadProducts(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			c.logger.Warn("failed to reload products: %v", err)
		}
	}
	return result, nil
}

func (c *Console) Refresh(ctx context.Context) (*models.ImageUpdateOperation, error) {
	op, err := c.tracker.Refresh(ctx)
	return op, c.fail(SlotOperation, err)
}

func (c *Console) Reset() error {
	return c.fail(SlotOperation, c.tracker.Reset())
}

// fail records err (or clears the slot for nil) and returns it.
func (c *Console) fail(slot Slot, err error) error {
	c.mu.Lock()
	c.setErr(slot, err)
	c.mu.Unlock()
	return err
}

// View is a consistent snapshot for rendering.
type View struct {
	Query       string
	Collections []models.Collection
	PageInfo    models.PageInfo
	Collection  *models.Collection
	Products    []models.Product
	Selected    map[string]bool
	SelectedIDs []string

	State     operation.State
	Operation *models.ImageUpdateOperation
	Uploaded  bool
	Message   string

	Errors  map[Slot]string
	Loading map[Slot]bool

	CanCreate   bool
	CanDownload bool
	CanUpload   bool
	CanProcess  bool
	CanReset    bool
}

func (c *Console) Snapshot() View {
	ids := c.selection.IDs()
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	c.mu.Lock()
	v := View{
		Query:       c.query,
		Collections: append([]models.Collection(nil), c.collections...),
		PageInfo:    c.pageInfo,
		Collection:  c.collection,
		Products:    append([]models.Product(nil), c.products...),
		Selected:    selected,
		SelectedIDs: ids,
		Errors:      make(map[Slot]string, len(c.errs)),
		Loading:     make(map[Slot]bool, len(c.loading)),
	}
	for k, e := range c.errs {
		v.Errors[k] = e
	}
	for k, l := range c.loading {
		v.Loading[k] = l
	}
	c.mu.Unlock()

	t := c.tracker
	v.State = t.State()
	v.Operation = t.Operation()
	v.Uploaded = t.Uploaded()
	v.Message = t.Message()
	v.CanCreate = v.Collection != nil && t.Allowed(operation.ActionCreate, len(ids))
	v.CanDownload = t.Allowed(operation.ActionDownload, 0)
	v.CanUpload = t.Allowed(operation.ActionUpload, 0)
	v.CanProcess = t.Allowed(operation.ActionProcess, 0)
	v.CanReset = v.State != operation.NoOperation && t.Allowed(operation.ActionReset, 0)
	return v
}
