package imageupdate

import (
	"context"
	"sync"

	"imageupdater/internal/logger"
)

// Applier performs a dispatched operation.
type Applier interface {
	Apply(ctx context.Context, operationID string) error
}

// InlineDispatcher applies operations in a goroutine of the API process.
// It is used when no message broker is configured.
type InlineDispatcher struct {
	applier Applier
	logger  *logger.Logger
	wg      sync.WaitGroup
}

func NewInlineDispatcher(a Applier, log *logger.Logger) *InlineDispatcher {
	return &InlineDispatcher{applier: a, logger: log}
}

// Dispatch returns immediately; the work outlives the request context.
func (d *InlineDispatcher) Dispatch(ctx context.Context, operationID string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.applier.Apply(context.WithoutCancel(ctx), operationID); err != nil {
			d.logger.Error("Inline apply of %s failed: %v", operationID, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched operation has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
