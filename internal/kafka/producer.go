package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// Producer handles publishing liquidation results to Kafka.
type Producer struct {
	writer *kafka.Writer
	log    *logrus.Entry
}

// NewProducer creates a Kafka producer for liquidation events.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		log:    logrus.WithField("component", "kafka-producer"),
	}
}

// PublishLiquidationResult publishes the outcome of a liquidation attempt,
// keyed by position id so results for one position stay ordered.
func (p *Producer) PublishLiquidationResult(ctx context.Context, attempt *models.LiquidationAttempt) error {
	event := models.LiquidationEvent{
		EventType:     eventTypeForState(attempt.State),
		PositionID:    attempt.PositionID,
		State:         attempt.State,
		DeclineReason: attempt.DeclineReason,
		ProfitUSD:     attempt.ProfitUSD,
		TxHash:        attempt.TxHash,
		Timestamp:     time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal liquidation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(attempt.PositionID, 10)),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write liquidation event: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"position_id": attempt.PositionID,
		"event_type":  event.EventType,
	}).Debug("published liquidation result")
	return nil
}

func eventTypeForState(state string) string {
	switch state {
	case models.AttemptStateExecuted:
		return models.EventLiquidationExecuted
	case models.AttemptStateDeclined:
		return models.EventLiquidationDeclined
	default:
		return models.EventLiquidationFailed
	}
}

// Close closes the Kafka producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
