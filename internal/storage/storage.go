// Package storage keeps operation snapshots in a blob store: the local
// filesystem or S3.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
