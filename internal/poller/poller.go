package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const DefaultGroupID = "cart-cleaner"

// clearAttempts bounds retries when a shopper edits the cart while ordered lines are removed.
const clearAttempts = 3

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartClearer removes the lines of a placed order from a session's cart.
type CartClearer interface {
	RemoveOrderedItems(ctx context.Context, sessionID string, ordered []domain.OrderItem) (*domain.Cart, error)
}

// Poller removes the ordered lines from a session's cart once its
// checkout-completed event arrives. Lines added after checkout are kept.
type Poller struct {
	carts  CartClearer
	reader MessageReader
	log    *logger.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(carts CartClearer, reader MessageReader, log *logger.Logger) *Poller {
	return &Poller{carts: carts, reader: reader, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.getMessageAndClearCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error(context.Background(), "error closing kafka reader", err)
	}
}

func (p *Poller) getMessageAndClearCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		p.log.Error(ctx, "error reading message", err)
		return
	}

	event, err := parseEvent(m.Value)
	if err != nil {
		p.log.Warn(p.log.WithField(ctx, "offset", m.Offset), "skipping checkout event", err)
		return
	}

	msgCtx := p.log.WithSessionID(ctx, event.SessionID)
	msgCtx = p.log.WithField(msgCtx, "order_id", event.OrderID)
	if err := p.clear(msgCtx, event); err != nil {
		p.log.Error(msgCtx, "failed to clear cart after checkout", err)
		return
	}
	p.log.Info(msgCtx, "ordered items removed from cart")
}

func (p *Poller) clear(ctx context.Context, event *domain.CheckoutCompletedEvent) error {
	var err error
	for attempt := 0; attempt < clearAttempts; attempt++ {
		_, err = p.carts.RemoveOrderedItems(ctx, event.SessionID, event.Items)
		if !errors.Is(err, service.ErrConflict) {
			return err
		}
	}
	return err
}

func parseEvent(payload []byte) (*domain.CheckoutCompletedEvent, error) {
	var event domain.CheckoutCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if event.SessionID == "" {
		return nil, errors.New("missing or invalid session_id")
	}
	if len(event.Items) == 0 {
		return nil, errors.New("event carries no ordered items")
	}
	return &event, nil
}
