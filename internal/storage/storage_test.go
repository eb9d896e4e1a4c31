package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imageupdater/internal/models"
)

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	if err := l.Put(ctx, "a/b.bin", []byte("hello"), "application/octet-stream"); err != nil {
		t.Fatal(err)
	}
	got, err := l.Get(ctx, "a/b.bin")
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := l.Delete(ctx, "a/b.bin"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Get(ctx, "a/b.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := l.Delete(ctx, "a/b.bin"); err != nil {
		t.Errorf("deleting a missing key should succeed: %v", err)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l := NewLocal(t.TempDir())
	for _, key := range []string{"../x", "a/../../x", ""} {
		if err := l.Put(context.Background(), key, nil, ""); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snaps, err := NewSnapshots(NewLocal(dir))
	if err != nil {
		t.Fatal(err)
	}

	in := &Snapshot{
		OperationID:  "op1",
		Kind:         SnapshotBefore,
		CollectionID: "gid://shopify/Collection/1",
		Products: []models.Product{{
			ID:     "gid://shopify/Product/1",
			Title:  "Tee",
			Images: []models.ProductImage{{ID: "gid://shopify/ProductImage/10", Src: "https://cdn.example.com/a.png", Position: 1}},
		}},
	}
	key, err := snaps.Save(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if key != "snapshots/op1/before.json.zst" {
		t.Errorf("unexpected key %s", key)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "snapshots", "op1", "before.json.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) < 4 || raw[0] != 0x28 || raw[1] != 0xb5 || raw[2] != 0x2f || raw[3] != 0xfd {
		t.Error("stored blob is not zstd framed")
	}

	out, err := snaps.Load(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	p := out.Product("gid://shopify/Product/1")
	if p == nil || p.Images[0].Src != "https://cdn.example.com/a.png" {
		t.Errorf("unexpected snapshot %+v", out)
	}
	if out.TakenAt.IsZero() {
		t.Error("TakenAt not set")
	}
}
