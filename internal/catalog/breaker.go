package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/pkg/circuitbreaker"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("catalog unavailable")

// BreakerCatalog trips after repeated catalog failures so cart operations
// fail fast instead of piling onto a dead store. Unknown product ids are an
// expected outcome and never count toward tripping.
type BreakerCatalog struct {
	next    Catalog
	breaker *circuitbreaker.Breaker
}

func NewBreakerCatalog(next Catalog, settings circuitbreaker.Settings) *BreakerCatalog {
	if settings.Name == "" {
		settings.Name = "catalog"
	}
	settings.IsExpected = func(err error) bool {
		return errors.Is(err, ErrProductNotFound) ||
			errors.Is(err, context.Canceled)
	}
	return &BreakerCatalog{next: next, breaker: circuitbreaker.New(settings)}
}

func (b *BreakerCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product *domain.Product
	err := b.breaker.Do(func() error {
		var err error
		product, err = b.next.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return product, nil
}

func (b *BreakerCatalog) ListProducts(ctx context.Context, category string) ([]*domain.Product, error) {
	var products []*domain.Product
	err := b.breaker.Do(func() error {
		var err error
		products, err = b.next.ListProducts(ctx, category)
		return err
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return products, nil
}

func (b *BreakerCatalog) State() string {
	return b.breaker.State()
}

func (b *BreakerCatalog) wrap(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
