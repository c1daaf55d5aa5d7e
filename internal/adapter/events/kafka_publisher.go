package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// KafkaPublisher streams committed movements to a Kafka topic, keyed by
// product so per-product ordering is preserved. Callers treat publishing as
// best-effort; the ledger transaction has already committed by the time a
// movement reaches here.
type KafkaPublisher struct {
	writer *kafka.Writer
}

type movementEvent struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Reference   string    `json:"reference"`
	PerformedBy string    `json:"performed_by"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaPublisher) PublishMovement(ctx context.Context, mv domain.Movement) error {
	payload, err := json.Marshal(movementEvent{
		ID:          mv.ID,
		ProductID:   mv.ProductID,
		Type:        string(mv.Type),
		Quantity:    mv.Quantity,
		Reference:   mv.Reference,
		PerformedBy: mv.PerformedBy.String(),
		Notes:       mv.Notes,
		CreatedAt:   mv.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal movement event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(mv.ProductID),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
