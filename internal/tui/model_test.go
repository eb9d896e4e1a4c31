package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"imageupdater/internal/client"
	"imageupdater/internal/console"
	"imageupdater/internal/models"
	"imageupdater/internal/operation"
)

type fakeAPI struct {
	mu       sync.Mutex
	op       models.ImageUpdateOperation
	queries  []string
	async    bool
	refreshs int
}

func (f *fakeAPI) SearchCollections(ctx context.Context, query string, limit int, after string) (*models.CollectionsPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	all := []models.Collection{
		{ID: "gid://shopify/Collection/7", Title: "Summer", Handle: "summer", ProductsCount: 2},
		{ID: "gid://shopify/Collection/8", Title: "Winter", Handle: "winter"},
	}
	var out []models.Collection
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(query)) {
			out = append(out, c)
		}
	}
	return &models.CollectionsPage{Collections: out}, nil
}

func (f *fakeAPI) GetProductsFromCollection(ctx context.Context, collectionID string, limit int, after string) (*models.ProductsPage, error) {
	return &models.ProductsPage{Products: []models.Product{
		{ID: "gid://shopify/Product/1", Title: "Tee", Images: []models.ProductImage{{ID: "i1", Src: "https://cdn.example.com/tee.png", Position: 1}}},
		{ID: "gid://shopify/Product/2", Title: "Hat"},
	}}, nil
}

func (f *fakeAPI) CreateImageUpdateOperation(ctx context.Context, collectionID string, productIDs []string) (*models.ImageUpdateOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op = models.ImageUpdateOperation{OperationID: "op1", CollectionID: collectionID, ProductIDs: productIDs,
		ProductsCount: len(productIDs), Status: models.OperationStatusPending}
	op := f.op
	return &op, nil
}

func (f *fakeAPI) GetImageUpdateOperation(ctx context.Context, id string) (*models.ImageUpdateOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshs++
	// async backends finish on the second status request after process
	if f.async && f.op.Status == models.OperationStatusProcessing && f.refreshs > 1 {
		f.op.Status = models.OperationStatusCompleted
		f.op.ImagesUpdated = 1
	}
	op := f.op
	return &op, nil
}

func (f *fakeAPI) DownloadImageUpdateCSV(ctx context.Context, id string) ([]byte, error) {
	return []byte("Product ID,Product Handle,Current Image ID,Collection Name,New Image URL\n"), nil
}

func (f *fakeAPI) UploadImageUpdateCSV(ctx context.Context, id string, file *client.CSVFile) (*models.ProcessResult, error) {
	f.mu.Lock()
	f.op.CSVUploaded = true
	f.mu.Unlock()
	return &models.ProcessResult{Success: true, Message: "CSV uploaded"}, nil
}

func (f *fakeAPI) ProcessImageUpdates(ctx context.Context, id string) (*models.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshs = 0
	if f.async {
		f.op.Status = models.OperationStatusProcessing
	} else {
		f.op.Status = models.OperationStatusCompleted
	}
	return &models.ProcessResult{Success: true, Message: "Processing started"}, nil
}

// drain runs cmd and feeds the model's own messages back into Update until
// nothing is left. Commands that do not answer quickly (cursor blinks) are
// skipped.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(time.Second):
		return
	}
	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, m, c)
		}
	case loginMsg, searchMsg, productsMsg, actionMsg, pollMsg:
		_, next := m.Update(msg)
		drain(t, m, next)
	}
}

func press(t *testing.T, m *Model, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := m.Update(msg)
		drain(t, m, cmd)
	}
}

func newModel(api *fakeAPI, authenticated bool, login func(context.Context, string) error) (*Model, *console.Console) {
	c := console.New(api, nil)
	m := New(Config{
		Console:       c,
		Authenticated: authenticated,
		Login:         login,
		DownloadDir:   "",
		PollInterval:  10 * time.Millisecond,
	})
	return m, c
}

func TestGateRequiresPassword(t *testing.T) {
	login := func(ctx context.Context, password string) error {
		if password != "letmein" {
			return errors.New("API request failed: 401 Unauthorized")
		}
		return nil
	}
	m, _ := newModel(&fakeAPI{}, false, login)
	if m.Screen() != ScreenGate {
		t.Fatalf("screen = %v, want gate", m.Screen())
	}

	press(t, m, "nope", "enter")
	if m.Screen() != ScreenGate {
		t.Fatal("wrong password left the gate")
	}
	if !strings.Contains(m.View(), "401") {
		t.Errorf("gate view does not show the error:\n%s", m.View())
	}

	press(t, m, "letmein", "enter")
	if m.Screen() != ScreenSearch {
		t.Fatalf("screen = %v, want search", m.Screen())
	}
}

func TestSearchSelectAndCreate(t *testing.T) {
	api := &fakeAPI{}
	changes := 0
	m, c := newModel(api, true, nil)
	m.cfg.Changed = func() { changes++ }
	drain(t, m, m.search(""))

	press(t, m, "s", "u", "m")
	v := c.Snapshot()
	if len(v.Collections) != 1 || v.Collections[0].Title != "Summer" {
		t.Fatalf("collections = %+v", v.Collections)
	}
	if got := api.queries[len(api.queries)-1]; got != "sum" {
		t.Errorf("last query = %q", got)
	}

	press(t, m, "enter")
	if m.Screen() != ScreenProducts {
		t.Fatalf("screen = %v, want products", m.Screen())
	}
	if n := len(c.Snapshot().Products); n != 2 {
		t.Fatalf("products = %d", n)
	}

	// nothing selected: create is disabled
	press(t, m, "c")
	if c.Tracker().State() != operation.NoOperation {
		t.Fatal("create ran without a selection")
	}

	press(t, m, " ", "down", " ")
	if got := c.Selection().Len(); got != 2 {
		t.Fatalf("selected = %d", got)
	}
	press(t, m, "n")
	if got := c.Selection().Len(); got != 0 {
		t.Fatalf("selected after clear = %d", got)
	}
	press(t, m, "a", "c")
	if c.Tracker().State() != operation.Pending {
		t.Fatalf("state = %v, want pending", c.Tracker().State())
	}
	if !strings.Contains(m.View(), "Created operation op1") {
		t.Errorf("view:\n%s", m.View())
	}
	if changes == 0 {
		t.Error("changes were not reported")
	}

	// process stays disabled until a CSV is uploaded
	press(t, m, "p")
	if c.Tracker().State() != operation.Pending {
		t.Fatal("process ran without an upload")
	}
}

func TestProcessingPollsUntilTerminal(t *testing.T) {
	api := &fakeAPI{async: true}
	m, c := newModel(api, true, nil)
	drain(t, m, m.search(""))
	press(t, m, "enter", "a", "c")

	path := t.TempDir() + "/plan.csv"
	if err := writeTestFile(path); err != nil {
		t.Fatal(err)
	}
	press(t, m, "u")
	m.path.SetValue(path)
	press(t, m, "enter")
	if !c.Tracker().Uploaded() {
		t.Fatalf("upload did not register: %v", c.Snapshot().Errors)
	}

	press(t, m, "p")
	if got := c.Tracker().State(); got != operation.Completed {
		t.Fatalf("state = %v, want completed", got)
	}
	if !strings.Contains(m.View(), "1 images updated") {
		t.Errorf("view:\n%s", m.View())
	}
}
