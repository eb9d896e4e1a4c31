package worker

import (
	"context"
	"errors"
	"time"

	"imageupdater/internal/config"
	"imageupdater/internal/events"
	"imageupdater/internal/logger"
	"imageupdater/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    *kafka.Reader
	processor *processors.EventProcessor
}

func New(cfg *config.Config, logger *logger.Logger, applier processors.Applier) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers(),
		GroupID:        cfg.KafkaGroupID,
		Topic:          cfg.KafkaTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return &Worker{
		config:    cfg,
		logger:    logger,
		reader:    reader,
		processor: processors.NewEventProcessor(applier, logger),
	}
}

// Start consumes events until ctx is cancelled. A failed apply is logged and
// the message committed: the operation is already marked failed and can be
// repeated.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started, listening on %s...", w.config.KafkaTopic)

	for {
		message, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			time.Sleep(time.Second)
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		event, err := events.Decode(message.Value)
		if err != nil {
			w.logger.Error("Failed to parse event: %v", err)
			continue
		}

		if err := w.processor.Process(ctx, event); err != nil {
			w.logger.Error("Failed to process event: %v", err)
			continue
		}

		w.logger.Debug("Event processed successfully")
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}
