package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imageupdater/internal/api"
	"imageupdater/internal/auth"
	"imageupdater/internal/backend"
	"imageupdater/internal/config"
	"imageupdater/internal/logger"
	"imageupdater/internal/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := newLogger(cfg)

	m := metrics.New()
	ctx := context.Background()

	// Initialize database, storage and services
	b, err := backend.New(ctx, cfg, logger, m, true)
	if err != nil {
		logger.Fatal("Failed to initialize backend: %v", err)
	}
	defer b.Close()

	authSvc, err := auth.NewService(b.DB.DB, cfg.AppPasswordHash, cfg.AppPassword, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("Failed to initialize auth: %v", err)
	}
	if n, err := authSvc.PurgeExpired(ctx); err == nil && n > 0 {
		logger.Info("Purged %d expired sessions", n)
	}

	if b.Publisher != nil {
		logger.Info("Dispatching operations to Kafka topic %s", cfg.KafkaTopic)
	} else {
		logger.Info("No Kafka brokers configured, applying operations inline")
	}
	logger.Info("Snapshots stored with the %s driver", b.Storage)

	// Initialize API server
	server := api.New(cfg, logger, b.DB, api.Services{
		Catalog:      b.Catalog,
		ImageUpdates: b.Updates,
		Auth:         authSvc,
		Metrics:      m,
	})

	// Start server
	go func() {
		logger.Info("Starting API server on port %s", cfg.APIPort)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown: %v", err)
	}
}

func newLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsProduction() {
		return logger.NewJSON(cfg.LogLevel)
	}
	return logger.New(cfg.LogLevel)
}
