// Package backend wires the services shared by the API server and the
// worker from the environment configuration.
package backend

import (
	"context"
	"fmt"

	"imageupdater/internal/config"
	"imageupdater/internal/database"
	"imageupdater/internal/events"
	"imageupdater/internal/imageupdate"
	"imageupdater/internal/logger"
	"imageupdater/internal/metrics"
	"imageupdater/internal/services/shopify"
	"imageupdater/internal/storage"
)

type Backend struct {
	DB        *database.Database
	Catalog   *shopify.Catalog
	Updates   *imageupdate.Service
	Publisher *events.Publisher
	Storage   string
}

// New opens the database and snapshot store and builds the image update
// service. With publish set and brokers configured, operations are handed
// to the worker over Kafka; otherwise they are applied inline.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics, publish bool) (*Backend, error) {
	if cfg.ShopifyShopDomain == "" || cfg.ShopifyAccessToken == "" {
		return nil, fmt.Errorf("SHOPIFY_SHOP_DOMAIN and SHOPIFY_ACCESS_TOKEN are required")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init snapshot storage: %w", err)
	}
	snaps, err := storage.NewSnapshots(store.Store)
	if err != nil {
		db.Close()
		return nil, err
	}

	sc := shopify.NewClient(cfg.ShopifyShopDomain, cfg.ShopifyAccessToken, cfg.ShopifyAPIVersion, log,
		shopify.WithObserver(m.ObserveUpstream))
	catalog := shopify.NewCatalog(sc)

	opts := []imageupdate.Option{
		imageupdate.WithMetrics(m),
		imageupdate.WithMaxUploadSize(cfg.MaxUploadSizeBytes()),
		imageupdate.WithShopDomain(cfg.ShopifyShopDomain),
	}
	b := &Backend{DB: db, Catalog: catalog, Storage: store.Driver}
	if publish && len(cfg.Brokers()) > 0 {
		b.Publisher = events.NewPublisher(cfg.Brokers(), cfg.KafkaTopic, cfg.ShopifyShopDomain, log)
		opts = append(opts, imageupdate.WithDispatcher(b.Publisher))
	}
	b.Updates = imageupdate.NewService(db.DB, catalog, snaps, log, opts...)
	return b, nil
}

func (b *Backend) Close() error {
	if b.Publisher != nil {
		b.Publisher.Close()
	}
	return b.DB.Close()
}
