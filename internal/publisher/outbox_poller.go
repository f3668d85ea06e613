package publisher

import (
	"context"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/metrics"
	"github.com/DotZohaib/ShopSphere/internal/orders"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "checkout-completed"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays stored outbox events to Kafka. Delivery is at least
// once: an event whose mark fails after a successful write is sent again.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	repo      orders.OutboxRepository
	writer    MessageWriter
	log       *logger.Logger
	metrics   *metrics.CartMetrics
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(repo orders.OutboxRepository, writer MessageWriter, log *logger.Logger, m *metrics.CartMetrics) *OutboxPoller {
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		batchSize: 100,
		repo:      repo,
		writer:    writer,
		log:       log,
		metrics:   m,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error(ctx, "failed to fetch outbox events", err)
		return
	}

	for _, event := range events {
		evCtx := p.log.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.EventType,
		})

		if err := p.publish(ctx, event); err != nil {
			p.metrics.IncOutbox("failed")
			p.log.Error(evCtx, "failed to publish outbox event", err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.metrics.IncOutbox("mark_failed")
			p.log.Error(evCtx, "failed to mark outbox event as processed", err)
			continue
		}
		p.metrics.IncOutbox("published")
		p.log.Debug(evCtx, "outbox event published")
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *orders.OutboxEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}
	return p.writer.WriteMessages(writeCtx, msg)
}
