package processors

import (
	"context"
	"errors"
	"testing"

	"imageupdater/internal/events"
	"imageupdater/internal/logger"
)

type applierFunc func(ctx context.Context, id string) error

func (f applierFunc) Apply(ctx context.Context, id string) error { return f(ctx, id) }

func TestProcessAppliesOperation(t *testing.T) {
	var applied string
	ep := NewEventProcessor(applierFunc(func(ctx context.Context, id string) error {
		applied = id
		return nil
	}), logger.Nop())

	if err := ep.Process(context.Background(), events.NewProcessEvent("01HOP", "")); err != nil {
		t.Fatal(err)
	}
	if applied != "01HOP" {
		t.Errorf("applied %q", applied)
	}
}

func TestProcessErrors(t *testing.T) {
	boom := errors.New("boom")
	ep := NewEventProcessor(applierFunc(func(ctx context.Context, id string) error { return boom }), logger.Nop())

	if err := ep.Process(context.Background(), events.NewProcessEvent("x", "")); !errors.Is(err, boom) {
		t.Errorf("expected apply error, got %v", err)
	}
	if err := ep.Process(context.Background(), events.Event{Type: "other"}); !errors.Is(err, events.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}
