package cache

import (
	"context"
	"errors"

	"github.com/DotZohaib/ShopSphere/internal/domain"
)

// CartCache is a read-through view of carts keyed by session id.
// It is never consulted by mutations.
type CartCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
