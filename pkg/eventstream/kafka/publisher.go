// Package kafka publishes reduction events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/lamdag/pkg/eventstream"
	"github.com/papercomputeco/lamdag/pkg/logger"
)

// MessageWriter is the part of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// Writer replaces the Kafka writer built from Brokers and Topic.
	Writer MessageWriter

	Logger *slog.Logger
}

// Publisher writes one JSON message per event, keyed by run ID so that the
// events of one run land on one partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	log    *slog.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(c Config) (*Publisher, error) {
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	w := c.Writer
	if w == nil {
		if len(c.Brokers) == 0 {
			return nil, errors.New("kafka publisher needs at least one broker")
		}
		if c.Topic == "" {
			return nil, errors.New("kafka publisher needs a topic")
		}
		w = &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  c.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		}
	}

	return &Publisher{writer: w, topic: c.Topic, log: log}, nil
}

func (p *Publisher) PublishReduction(ctx context.Context, event *eventstream.ReductionEvent) error {
	if event == nil {
		return eventstream.ErrNilReductionEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding reduction event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Run.RunID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing reduction event %s: %w", event.EventID, err)
	}

	p.log.Debug("reduction event published",
		"event_id", event.EventID,
		"run_id", event.Run.RunID,
		"topic", p.topic,
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
