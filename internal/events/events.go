// README: Domain event publishing; Kafka when brokers are configured, otherwise a no-op.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"knx/internal/metrics"
)

const (
	TypeOrderPlaced          = "order.placed"
	TypeOrderStatusChanged   = "order.status_changed"
	TypePaymentStatusChanged = "payment.status_changed"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New keys an event by an integer aggregate id.
func New(typ string, id int64, payload any) Event {
	return Event{Type: typ, Key: strconv.FormatInt(id, 10), OccurredAt: time.Now().UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
		log: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(e.Type, "error").Inc()
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(e.Type, "error").Inc()
		p.log.Warn("publish event", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(e.Type, "ok").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, e Event) error {
	metrics.EventsPublished.WithLabelValues(e.Type, "dropped").Inc()
	return nil
}

// NewPublisher picks Kafka when brokers are set.
func NewPublisher(brokers []string, topic string, log *zap.Logger) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic, log)
}
