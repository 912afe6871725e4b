package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenlabs/identity-service/internal/service"
)

// EventType identifies a domain event on the platform bus.
type EventType string

const (
	EventUserRegistered  EventType = "identity.user.registered"
	EventUserLoggedIn    EventType = "identity.user.logged_in"
	EventAccountLinked   EventType = "identity.oauth_account.linked"
	EventAccountUnlinked EventType = "identity.oauth_account.unlinked"
)

const (
	cloudEventSpecVersion     = "1.0"
	cloudEventDataContentType = "application/json"
)

// CloudEvent is the CloudEvents v1.0 envelope every message on the bus
// travels in.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data,omitempty"`
}

// Producer publishes identity domain events to Kafka as CloudEvents. It
// satisfies service.EventPublisher: publishing is best-effort and failures
// are logged, never returned to the request that triggered them.
type Producer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	topic    string
	source   string
}

var _ service.EventPublisher = (*Producer)(nil)

// NewProducer creates a synchronous idempotent producer. source identifies
// this service in the CloudEvent envelope, e.g. "/identity-service".
func NewProducer(brokers []string, topic, source string, logger *zap.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		logger:   logger.Named("kafka_producer"),
		topic:    topic,
		source:   source,
	}, nil
}

func (p *Producer) PublishUserRegistered(ctx context.Context, event service.UserRegisteredEvent) {
	p.publish(ctx, EventUserRegistered, event.UserID.String(), event)
}

func (p *Producer) PublishUserLoggedIn(ctx context.Context, event service.UserLoggedInEvent) {
	p.publish(ctx, EventUserLoggedIn, event.UserID.String(), event)
}

func (p *Producer) PublishAccountLinked(ctx context.Context, event service.AccountLinkedEvent) {
	p.publish(ctx, EventAccountLinked, event.UserID.String(), event)
}

func (p *Producer) PublishAccountUnlinked(ctx context.Context, event service.AccountUnlinkedEvent) {
	p.publish(ctx, EventAccountUnlinked, event.UserID.String(), event)
}

// publish wraps the payload in a CloudEvent and sends it. The subject doubles
// as the partition key so one user's events stay ordered.
func (p *Producer) publish(_ context.Context, eventType EventType, subject string, payload interface{}) {
	envelope := CloudEvent{
		SpecVersion:     cloudEventSpecVersion,
		Type:            string(eventType),
		Source:          p.source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: cloudEventDataContentType,
		Data:            payload,
	}

	eventJSON, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error("Failed to marshal CloudEvent",
			zap.String("type", string(eventType)), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(subject),
		Value: sarama.ByteEncoder(eventJSON),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("Failed to send CloudEvent to Kafka",
			zap.String("topic", p.topic),
			zap.String("type", string(eventType)),
			zap.String("event_id", envelope.ID),
			zap.Error(err))
		return
	}

	p.logger.Debug("CloudEvent sent to Kafka",
		zap.String("topic", p.topic),
		zap.String("type", string(eventType)),
		zap.String("event_id", envelope.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
