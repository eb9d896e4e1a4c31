package storage

import (
	"context"
	"fmt"

	"imageupdater/internal/config"
)

type FactoryResult struct {
	Driver string
	Store  Store
}

func FromConfig(ctx context.Context, cfg *config.Config) (FactoryResult, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return FactoryResult{Driver: "local", Store: NewLocal(cfg.LocalSnapshotDir)}, nil

	case "s3":
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return FactoryResult{}, fmt.Errorf("S3 config missing: S3_REGION and S3_BUCKET required")
		}
		s, err := NewS3(ctx, S3Config{
			Region: cfg.S3Region,
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
		})
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "s3", Store: s}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown STORAGE_DRIVER: %s", cfg.StorageDriver)
	}
}
