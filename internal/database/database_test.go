package database

import (
	"path/filepath"
	"testing"

	"imageupdater/internal/models"
)

func TestNewSQLiteCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := New("sqlite://" + path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	if db.Dialect != DialectSQLite {
		t.Errorf("unexpected dialect %s", db.Dialect)
	}
	for _, table := range []string{"image_update_operations", "image_update_rows", "image_changes", "sessions"} {
		if !db.DB.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}

	op := models.ImageUpdateOperation{
		CollectionID: "gid://shopify/Collection/1",
		ProductIDs:   []string{"gid://shopify/Product/1", "gid://shopify/Product/2"},
		Status:       models.OperationStatusPending,
	}
	if err := db.DB.Create(&op).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if op.OperationID == "" {
		t.Fatal("operation id not assigned")
	}

	var got models.ImageUpdateOperation
	if err := db.DB.First(&got, "operation_id = ?", op.OperationID).Error; err != nil {
		t.Fatal(err)
	}
	if len(got.ProductIDs) != 2 || got.ProductIDs[1] != "gid://shopify/Product/2" {
		t.Errorf("product ids not round-tripped: %v", got.ProductIDs)
	}
}

func TestNewIsIdempotent(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "twice.db")
	first, err := New(url)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := New(url)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	second.Close()
}
