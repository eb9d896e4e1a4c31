package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"imageupdater/internal/models"
)

type SnapshotKind string

const (
	SnapshotBefore SnapshotKind = "before"
	SnapshotAfter  SnapshotKind = "after"
)

// Snapshot is the product state of an operation at one point in time.
type Snapshot struct {
	OperationID  string           `json:"operationId"`
	Kind         SnapshotKind     `json:"kind"`
	CollectionID string           `json:"collectionId"`
	TakenAt      time.Time        `json:"takenAt"`
	Products     []models.Product `json:"products"`
}

// Product returns the snapshotted product with id, or nil.
func (s *Snapshot) Product(id string) *models.Product {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return &s.Products[i]
		}
	}
	return nil
}

// Snapshots stores JSON snapshots compressed with zstd under
// snapshots/<operation>/<kind>.json.zst.
type Snapshots struct {
	store Store
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func NewSnapshots(store Store) (*Snapshots, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Snapshots{store: store, enc: enc, dec: dec}, nil
}

func SnapshotKey(operationID string, kind SnapshotKind) string {
	return fmt.Sprintf("snapshots/%s/%s.json.zst", operationID, kind)
}

// Save writes the snapshot and returns its key.
func (s *Snapshots) Save(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	key := SnapshotKey(snap.OperationID, snap.Kind)
	if err := s.store.Put(ctx, key, s.enc.EncodeAll(data, nil), "application/zstd"); err != nil {
		return "", fmt.Errorf("failed to store %s snapshot: %w", snap.Kind, err)
	}
	return key, nil
}

func (s *Snapshots) Load(ctx context.Context, key string) (*Snapshot, error) {
	blob, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot %s: %w", key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}
