package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/internal/metrics"
	"github.com/DotZohaib/ShopSphere/internal/orders"
	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrDuplicateCheckout = errors.New("checkout already submitted for idempotency key")
	ErrOrderNotFound     = orders.ErrOrderNotFound
)

// CartResolver is the part of the cart service checkout depends on. It must
// read the stored cart, not a cached copy.
type CartResolver interface {
	ResolveCurrentCart(ctx context.Context, sessionID string) (*domain.ResolvedCart, error)
}

// Guard claims idempotency keys. Acquire returns false when the key is taken.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Service struct {
	carts   CartResolver
	orders  orders.OrderRepository
	guard   Guard
	log     *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires checkout. guard may be nil, in which case only the
// order store's unique key constraint protects against replays.
func NewService(carts CartResolver, repo orders.OrderRepository, guard Guard, opts ...Option) *Service {
	s := &Service{
		carts:  carts,
		orders: repo,
		guard:  guard,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder validates the form, snapshots the session's resolved cart at
// current prices and stores the order together with its outbox event.
// The cart itself is cleared later by the checkout-completed consumer.
func (s *Service) PlaceOrder(ctx context.Context, sessionID, idempotencyKey string, details ShopperDetails) (order *domain.Order, err error) {
	if sessionID == "" {
		return nil, service.ErrInvalidSession
	}

	details.Normalize()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", service.ErrStoreUnavailable, err)
		}
		if !acquired {
			return nil, ErrDuplicateCheckout
		}
		defer func() {
			if err != nil && !errors.Is(err, ErrDuplicateCheckout) {
				s.release(idempotencyKey)
			}
		}()
	}

	resolved, err := s.carts.ResolveCurrentCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(resolved.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	order, err = s.snapshot(sessionID, idempotencyKey, resolved, details)
	if err != nil {
		return nil, err
	}

	event, err := completedEvent(order)
	if err != nil {
		return nil, err
	}

	if err := s.orders.CreateOrder(ctx, order, event); err != nil {
		if errors.Is(err, orders.ErrDuplicateOrder) {
			return nil, ErrDuplicateCheckout
		}
		return nil, fmt.Errorf("%w: %w", service.ErrStoreUnavailable, err)
	}

	s.metrics.IncOrdersPlaced()
	logCtx := s.log.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"total":    order.TotalAmount.String(),
		"items":    len(order.Items),
	})
	s.log.Info(logCtx, "order placed")

	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, sessionID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %w", service.ErrStoreUnavailable, err)
	}
	// orders of other sessions are reported as absent
	if order.SessionID != sessionID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	if sessionID == "" {
		return nil, service.ErrInvalidSession
	}
	list, err := s.orders.ListOrdersBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrStoreUnavailable, err)
	}
	return list, nil
}

func (s *Service) snapshot(sessionID, idempotencyKey string, resolved *domain.ResolvedCart, details ShopperDetails) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(resolved.Lines))
	for _, line := range resolved.Lines {
		// stock may have dropped since the line was added
		if line.Quantity > line.Product.Stock {
			return nil, &service.InvalidQuantityError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Stock:     line.Product.Stock,
			}
		}
		items = append(items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.Product.EffectivePrice(),
			Subtotal:    line.Subtotal(),
		})
	}

	return &domain.Order{
		ID:             uuid.New(),
		SessionID:      sessionID,
		CartID:         resolved.Cart.ID,
		Items:          items,
		TotalAmount:    service.ComputeTotal(resolved.Lines),
		Currency:       domain.DefaultCurrency,
		Shopper:        details.shopper(),
		CreatedAt:      s.now(),
		IdempotencyKey: idempotencyKey,
	}, nil
}

func completedEvent(order *domain.Order) (*orders.OutboxEvent, error) {
	payload, err := json.Marshal(domain.CheckoutCompletedEvent{
		OrderID:     order.ID.String(),
		SessionID:   order.SessionID,
		CartID:      order.CartID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		CompletedAt: order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout event: %w", err)
	}
	return &orders.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: order.ID.String(),
		EventType:   domain.EventCheckoutCompleted,
		Payload:     payload,
	}, nil
}

func (s *Service) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to release idempotency key", err)
	}
}
