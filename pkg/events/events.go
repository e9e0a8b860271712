// Package events publishes storefront domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

const TopicOrderPlaced = "order-placed"

// OrderPlaced is the payload of the order-placed topic.
type OrderPlaced struct {
	Code          string               `json:"code"`
	UserID        string               `json:"user_id,omitempty"`
	Lines         []models.CartLine    `json:"lines"`
	Subtotal      int64                `json:"subtotal"`
	PromoCode     string               `json:"promo_code,omitempty"`
	Discount      int64                `json:"discount"`
	Total         int64                `json:"total"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PlacedAt      time.Time            `json:"placed_at"`
}

func NewOrderPlaced(o *models.Order) OrderPlaced {
	return OrderPlaced{
		Code:          o.Code,
		UserID:        o.UserID,
		Lines:         o.Lines,
		Subtotal:      o.Subtotal,
		PromoCode:     o.PromoCode,
		Discount:      o.Discount,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PlacedAt:      o.CreatedAt,
	}
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter creates a writer that only waits for the leader ack.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func NewPublisher(cfg *config.KafkaConfig, logger *zap.Logger) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = TopicOrderPlaced
	}
	return NewPublisherWithWriter(NewKafkaWriter(cfg.Brokers, topic), logger)
}

func NewPublisherWithWriter(w MessageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger.Named("events")}
}

// PublishOrderPlaced writes the order keyed by its code, so that all events
// of one order land on the same partition.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, o *models.Order) error {
	value, err := json.Marshal(NewOrderPlaced(o))
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(o.Code),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write order event: %w", err)
	}
	p.logger.Debug("Order event published", zap.String("order_code", o.Code))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
