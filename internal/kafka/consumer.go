package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// PositionRegistry is the registry surface the consumer drives.
type PositionRegistry interface {
	AddOne(ctx context.Context, id uint64) error
}

// Consumer handles consuming position-creation events from Kafka. Each
// POSITION_CREATED event registers the announced position with the registry;
// other event types on the topic are ignored.
type Consumer struct {
	reader   *kafka.Reader
	registry PositionRegistry
	log      *logrus.Entry
}

// NewConsumer creates a Kafka consumer for position events.
func NewConsumer(brokers []string, topic, groupID string, registry PositionRegistry) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:   reader,
		registry: registry,
		log:      logrus.WithField("component", "kafka-consumer"),
	}
}

// Start begins consuming messages until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.WithField("topic", c.reader.Config().Topic).Info("starting position event consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("position event consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // context cancelled, normal shutdown
				}
				c.log.WithError(err).Warn("error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.WithError(err).Warn("error processing message")
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PositionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal position event: %w", err)
	}

	if event.EventType != models.EventPositionCreated {
		c.log.WithField("event_type", event.EventType).Debug("ignoring event type")
		return nil
	}
	if event.PositionID == 0 {
		return fmt.Errorf("position event missing position id")
	}

	if err := c.registry.AddOne(ctx, event.PositionID); err != nil {
		return fmt.Errorf("failed to register position %d: %w", event.PositionID, err)
	}

	c.log.WithFields(logrus.Fields{
		"position_id": event.PositionID,
		"owner":       event.Owner,
	}).Info("registered position from event stream")
	return nil
}

// Close closes the Kafka consumer.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
