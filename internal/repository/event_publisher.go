package repository

import (
	"context"
	"fmt"

	"CryptoDash/internal/domain/models"
	domrepo "CryptoDash/internal/domain/repository"
	pkgkafka "CryptoDash/pkg/kafka"
)

// KafkaEventPublisher implements EventPublisher for Kafka.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a publisher writing to topic. Events are keyed
// by Event.Key so one feed or session stays ordered within a partition.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) domrepo.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, evt models.Event) error {
	msg := pkgkafka.Message{
		Key:     []byte(evt.Key),
		Value:   evt,
		Headers: map[string]string{"event_type": evt.Type},
	}
	if err := p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{msg}); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopEventPublisher drops events. Used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, models.Event) error { return nil }
func (NoopEventPublisher) Close() error { return nil }
