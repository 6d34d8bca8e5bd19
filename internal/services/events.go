package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// eventPublisher publishes account events. Publishing is best-effort:
// failures are logged and never fail the operation that produced the event.
type eventPublisher struct {
	writer KafkaWriter
}

func (p eventPublisher) publish(ctx context.Context, eventType string, userID uuid.UUID) {
	if p.writer == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "type", eventType, "user_id", userID)
		return
	}

	event := models.AccountEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		UserID:    userID.String(),
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal account event", "event_id", event.EventID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish account event", "event_id", event.EventID, "type", eventType, "error", err)
	} else {
		logger.Log.Infow("Account event published", "event_id", event.EventID, "type", eventType, "user_id", event.UserID)
	}
}
