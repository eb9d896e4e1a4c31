package imageupdate

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"imageupdater/internal/apperr"
	"imageupdater/internal/database"
	"imageupdater/internal/imagecsv"
	"imageupdater/internal/models"
	"imageupdater/internal/storage"
)

const summer = "gid://shopify/Collection/7"

type fixture struct {
	svc     *Service
	catalog *fakeCatalog
	inline  *InlineDispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New("sqlite://" + filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	snaps, err := storage.NewSnapshots(storage.NewLocal(filepath.Join(dir, "blobs")))
	if err != nil {
		t.Fatal(err)
	}

	cat := newFakeCatalog()
	cat.addCollection(summer, "Summer", tee(), hat())
	svc := NewService(db.DB, cat, snaps, nil, opts...)
	inline, _ := svc.Dispatcher().(*InlineDispatcher)
	return &fixture{svc: svc, catalog: cat, inline: inline}
}

func (f *fixture) create(t *testing.T, ids ...string) *models.ImageUpdateOperation {
	t.Helper()
	op, err := f.svc.Create(context.Background(), CreateRequest{CollectionID: summer, ProductIDs: ids, UserName: "ops"})
	if err != nil {
		t.Fatal(err)
	}
	return op
}

// edit downloads the plan, applies fn to the rows and uploads it back.
func (f *fixture) edit(t *testing.T, id string, fn func([]models.ImageUpdateCSVRow)) {
	t.Helper()
	ctx := context.Background()
	data, err := f.svc.CSV(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := imagecsv.Read(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if fn != nil {
		fn(rows)
	}
	out, err := imagecsv.Encode(rows)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UploadCSV(ctx, id, out); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) process(t *testing.T, id string) *models.ImageUpdateOperation {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Process(ctx, id); err != nil {
		t.Fatal(err)
	}
	f.inline.Wait()
	op, err := f.svc.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return op
}

func TestCreateBuildsTemplate(t *testing.T) {
	f := newFixture(t)
	op := f.create(t, tee().ID, hat().ID, tee().ID)

	if op.Status != models.OperationStatusPending || op.ProductsCount != 2 || op.CollectionName != "Summer" {
		t.Fatalf("unexpected operation %+v", op)
	}
	if op.BeforeSnapshotS3Key == "" {
		t.Error("before snapshot not recorded")
	}

	data, err := f.svc.CSV(context.Background(), op.OperationID)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := imagecsv.Read(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	// two tee images plus one append row for the hat
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].CurrentImageID != "gid://shopify/ProductImage/1" || rows[0].CollectionName != "Summer" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[2].ProductHandle != "hat" || rows[2].CurrentImageID != "" || rows[2].NewImageURL != "" {
		t.Errorf("unexpected append row %+v", rows[2])
	}
}

func TestCreateRejectsBadSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{CollectionID: summer})
	if !apperr.Is(err, apperr.Invalid) {
		t.Errorf("expected invalid error, got %v", err)
	}
	if f.catalog.calls != 0 {
		t.Errorf("empty selection reached the store %d times", f.catalog.calls)
	}

	_, err = f.svc.Create(ctx, CreateRequest{CollectionID: summer, ProductIDs: []string{"gid://shopify/Product/99"}})
	if !apperr.Is(err, apperr.Invalid) {
		t.Errorf("expected invalid error for foreign product, got %v", err)
	}
}

func TestUnmodifiedRoundTripChangesNothing(t *testing.T) {
	f := newFixture(t)
	op := f.create(t, tee().ID, hat().ID)
	f.edit(t, op.OperationID, nil)

	got := f.process(t, op.OperationID)
	if got.Status != models.OperationStatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", got.Status, got.ErrorMessage)
	}
	if got.ImagesUpdated != 0 || f.catalog.mutationCount() != 0 {
		t.Errorf("round trip mutated the store: %d updated, %d mutations", got.ImagesUpdated, f.catalog.mutationCount())
	}
	if got.AfterSnapshotS3Key == "" || got.CompletedAt == nil {
		t.Error("completion fields not set")
	}
}

func TestReplaceKeepsPositionAltAndVariants(t *testing.T) {
	f := newFixture(t)
	op := f.create(t, tee().ID)
	f.edit(t, op.OperationID, func(rows []models.ImageUpdateCSVRow) {
		rows[0].NewImageURL = "https://cdn.example.com/tee-front-v2.png"
	})

	got := f.process(t, op.OperationID)
	if got.Status != models.OperationStatusCompleted || got.ImagesUpdated != 1 {
		t.Fatalf("unexpected result %s / %d", got.Status, got.ImagesUpdated)
	}

	p := f.catalog.product(tee().ID)
	main := p.MainImage()
	if main == nil || main.Src != "https://cdn.example.com/tee-front-v2.png" {
		t.Fatalf("main image not replaced: %+v", p.Images)
	}
	if main.Alt == nil || *main.Alt != "Front" {
		t.Error("alt text lost")
	}
	if len(p.Images) != 2 || p.ImageByID("gid://shopify/ProductImage/1") != nil {
		t.Errorf("old image not removed: %+v", p.Images)
	}
	if ids := p.VariantIDsForImage(main.ID); len(ids) != 2 {
		t.Errorf("variants not moved to the new image: %v", ids)
	}
}

func TestAppendToProductWithoutImages(t *testing.T) {
	f := newFixture(t)
	op := f.create(t, hat().ID)
	f.edit(t, op.OperationID, func(rows []models.ImageUpdateCSVRow) {
		rows[0].NewImageURL = "https://cdn.example.com/hat.png"
	})

	got := f.process(t, op.OperationID)
	if got.ImagesUpdated != 1 {
		t.Fatalf("expected one update, got %d", got.ImagesUpdated)
	}
	p := f.catalog.product(hat().ID)
	if len(p.Images) != 1 || p.Images[0].Position != 1 {
		t.Errorf("unexpected images %+v", p.Images)
	}
}

func TestRollbackRestoresReplacedImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.create(t, tee().ID, hat().ID)
	f.edit(t, op.OperationID, func(rows []models.ImageUpdateCSVRow) {
		rows[0].NewImageURL = "https://cdn.example.com/tee-front-v2.png"
		rows[2].NewImageURL = "https://cdn.example.com/hat.png"
	})
	f.process(t, op.OperationID)

	res, err := f.svc.Rollback(ctx, op.OperationID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Errorf("unexpected result %+v", res)
	}

	p := f.catalog.product(tee().ID)
	main := p.MainImage()
	if len(p.Images) != 2 || main.Src != "https://cdn.example.com/tee-front.png" || main.Position != 1 {
		t.Fatalf("tee not restored: %+v", p.Images)
	}
	if ids := p.VariantIDsForImage(main.ID); len(ids) != 2 {
		t.Errorf("variant ids not restored: %v", ids)
	}
	if h := f.catalog.product(hat().ID); len(h.Images) != 0 {
		t.Errorf("appended image not removed: %+v", h.Images)
	}

	got, _ := f.svc.Get(ctx, op.OperationID)
	if got.RolledBackAt == nil {
		t.Error("rolled_back_at not set")
	}
	if _, err := f.svc.Rollback(ctx, op.OperationID); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("second rollback should conflict, got %v", err)
	}
}

func TestFailedOperationCanBeRepeated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.create(t, tee().ID)
	f.edit(t, op.OperationID, func(rows []models.ImageUpdateCSVRow) {
		rows[1].NewImageURL = "https://cdn.example.com/broken.png"
	})

	f.catalog.failSrc["https://cdn.example.com/broken.png"] = true
	failed := f.process(t, op.OperationID)
	if failed.Status != models.OperationStatusFailed || failed.ErrorMessage == nil {
		t.Fatalf("expected failed operation, got %s", failed.Status)
	}
	if _, err := f.svc.Rollback(ctx, op.OperationID); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("rollback of failed operation should conflict, got %v", err)
	}

	f.catalog.failSrc = map[string]bool{}
	repeat, err := f.svc.Repeat(ctx, op.OperationID)
	if err != nil {
		t.Fatal(err)
	}
	f.inline.Wait()
	repeat, _ = f.svc.Get(ctx, repeat.OperationID)

	if repeat.RepeatOf == nil || *repeat.RepeatOf != op.OperationID {
		t.Errorf("repeat_of not set: %v", repeat.RepeatOf)
	}
	if repeat.Status != models.OperationStatusCompleted || repeat.ImagesUpdated != 1 {
		t.Errorf("unexpected repeat %s / %d", repeat.Status, repeat.ImagesUpdated)
	}
	p := f.catalog.product(tee().ID)
	if p.SortedImages()[1].Src != "https://cdn.example.com/broken.png" {
		t.Errorf("repeat did not apply the plan: %+v", p.Images)
	}
}

func TestRepeatOfCompletedOperationIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.create(t, tee().ID)
	f.edit(t, op.OperationID, func(rows []models.ImageUpdateCSVRow) {
		rows[0].NewImageURL = "https://cdn.example.com/tee-front-v2.png"
	})
	f.process(t, op.OperationID)
	before := f.catalog.mutationCount()

	repeat, err := f.svc.Repeat(ctx, op.OperationID)
	if err != nil {
		t.Fatal(err)
	}
	f.inline.Wait()
	repeat, _ = f.svc.Get(ctx, repeat.OperationID)
	if repeat.Status != models.OperationStatusCompleted || repeat.ImagesUpdated != 0 {
		t.Errorf("unexpected repeat %s / %d", repeat.Status, repeat.ImagesUpdated)
	}
	if f.catalog.mutationCount() != before {
		t.Error("repeat of an applied plan mutated the store")
	}
}

func TestUploadRejections(t *testing.T) {
	f := newFixture(t, WithMaxUploadSize(4096))
	ctx := context.Background()
	op := f.create(t, tee().ID)

	tests := []struct {
		name string
		csv  string
		kind apperr.Kind
	}{
		{
			name: "missing column",
			csv:  "Product ID,New Image URL\ngid://shopify/Product/1,https://x.test/a.png\n",
			kind: apperr.Invalid,
		},
		{
			name: "foreign product",
			csv:  "Product ID,Product Handle,Current Image ID,Collection Name,New Image URL\ngid://shopify/Product/2,hat,,Summer,https://x.test/a.png\n",
			kind: apperr.Invalid,
		},
		{
			name: "non-http url",
			csv:  "Product ID,Product Handle,Current Image ID,Collection Name,New Image URL\ngid://shopify/Product/1,tee,,Summer,ftp://x.test/a.png\n",
			kind: apperr.Invalid,
		},
		{
			name: "image of another product",
			csv:  "Product ID,Product Handle,Current Image ID,Collection Name,New Image URL\ngid://shopify/Product/1,tee,gid://shopify/ProductImage/77,Summer,\n",
			kind: apperr.Invalid,
		},
		{
			name: "same image twice",
			csv: "Product ID,Product Handle,Current Image ID,Collection Name,New Image URL\n" +
				"gid://shopify/Product/1,tee,gid://shopify/ProductImage/1,Summer,https://x.test/a.png\n" +
				"gid://shopify/Product/1,tee,gid://shopify/ProductImage/1,Summer,https://x.test/b.png\n",
			kind: apperr.Invalid,
		},
		{
			name: "too large",
			csv:  string(bytes.Repeat([]byte("x"), 5000)),
			kind: apperr.TooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadCSV(ctx, op.OperationID, []byte(tt.csv))
			if !apperr.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}

	got, _ := f.svc.Get(ctx, op.OperationID)
	if got.CSVUploaded {
		t.Error("rejected upload marked the operation")
	}
}

func TestProcessPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.create(t, tee().ID)

	if _, err := f.svc.Process(ctx, op.OperationID); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("process without upload should conflict, got %v", err)
	}
	if _, err := f.svc.Process(ctx, "missing"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	f.edit(t, op.OperationID, nil)
	f.process(t, op.OperationID)
	if _, err := f.svc.UploadCSV(ctx, op.OperationID, []byte("x")); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("upload after completion should conflict, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, tee().ID)
	second := f.create(t, hat().ID)

	ops, err := f.svc.History(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 || ops[0].OperationID != second.OperationID || ops[1].OperationID != first.OperationID {
		t.Errorf("unexpected order %v", ops)
	}
}
