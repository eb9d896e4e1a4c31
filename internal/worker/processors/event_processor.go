package processors

import (
	"context"
	"fmt"

	"imageupdater/internal/events"
	"imageupdater/internal/logger"
)

// Applier performs a dispatched image update operation.
type Applier interface {
	Apply(ctx context.Context, operationID string) error
}

type EventProcessor struct {
	applier Applier
	logger  *logger.Logger
}

func NewEventProcessor(applier Applier, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		applier: applier,
		logger:  logger,
	}
}

func (ep *EventProcessor) Process(ctx context.Context, event events.Event) error {
	ep.logger.Debug("Processing event: %+v", event)

	switch event.Type {
	case events.TypeProcess:
		if err := ep.applier.Apply(ctx, event.OperationID); err != nil {
			return fmt.Errorf("apply %s: %w", event.OperationID, err)
		}
	default:
		return fmt.Errorf("%w: %q", events.ErrUnknownType, event.Type)
	}

	ep.logger.Info("Event %s for %s processed", event.Type, event.OperationID)
	return nil
}
