package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"imageupdater/internal/backend"
	"imageupdater/internal/config"
	"imageupdater/internal/logger"
	"imageupdater/internal/metrics"
	"imageupdater/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := newLogger(cfg)

	if len(cfg.Brokers()) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := backend.New(ctx, cfg, logger, metrics.New(), false)
	if err != nil {
		logger.Fatal("Failed to initialize backend: %v", err)
	}
	defer b.Close()

	// Initialize worker
	w := worker.New(cfg, logger, b.Updates)

	// Start worker
	logger.Info("Starting worker...")
	go w.Start(ctx)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	w.Stop()
}

func newLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsProduction() {
		return logger.NewJSON(cfg.LogLevel)
	}
	return logger.New(cfg.LogLevel)
}
