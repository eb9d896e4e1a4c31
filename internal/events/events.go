// Package events carries image update work between the API and the worker
// over Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"imageupdater/internal/logger"
)

const TypeProcess = "image-update.process"

var ErrUnknownType = errors.New("unknown event type")

type Event struct {
	Type        string    `json:"type"`
	OperationID string    `json:"operation_id"`
	ShopDomain  string    `json:"shop_domain,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewProcessEvent(operationID, shopDomain string) Event {
	return Event{
		Type:        TypeProcess,
		OperationID: operationID,
		ShopDomain:  shopDomain,
		Timestamp:   time.Now().UTC(),
	}
}

// Decode parses a message value and rejects events this version cannot
// handle.
func Decode(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, fmt.Errorf("failed to parse event: %w", err)
	}
	if e.Type != TypeProcess {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if e.OperationID == "" {
		return Event{}, errors.New("event has no operation_id")
	}
	return e, nil
}

// Message keys events by operation so retries of one operation stay on one
// partition.
func Message(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.OperationID),
		Value: value,
		Time:  e.Timestamp,
	}, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher dispatches operations to the worker.
type Publisher struct {
	writer     messageWriter
	shopDomain string
	logger     *logger.Logger
}

func NewPublisher(brokers []string, topic, shopDomain string, log *logger.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Publisher{writer: w, shopDomain: shopDomain, logger: log}
}

func (p *Publisher) Dispatch(ctx context.Context, operationID string) error {
	msg, err := Message(NewProcessEvent(operationID, p.shopDomain))
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("Published %s for %s", TypeProcess, operationID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
