package service

import (
	"context"
	"errors"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/cache"
	"github.com/DotZohaib/ShopSphere/internal/catalog"
	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/internal/metrics"
	"github.com/DotZohaib/ShopSphere/internal/repository"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// CartService keeps a session's cart in sync with the remote store.
// Mutations always read the store, never the cache, and write the whole
// item list back in one replace.
type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.Resolver
	mode    ConcurrencyMode
	log     *logger.Logger
	metrics *metrics.CartMetrics
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, resolver catalog.Resolver, opts ...Option) *CartService {
	s := &CartService{
		repo:    repo,
		cache:   cache,
		catalog: resolver,
		mode:    ModeOptimistic,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CartService) Mode() ConcurrencyMode {
	return s.mode
}

// LoadCart returns the session's cart, creating an empty one on first use.
func (s *CartService) LoadCart(ctx context.Context, sessionID string) (cart *domain.Cart, err error) {
	defer s.observe("load", time.Now(), &err)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	// Concurrent loads for one session share a single cache/store round trip.
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if s.cache != nil {
			cached, err := s.cache.Get(ctx, sessionID)
			if err == nil {
				return cached, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.log.Warn(ctx, "cache get failed", err)
			}
		}

		loaded, err := s.fetchOrCreate(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			snapshot := loaded.Clone()
			go func() {
				setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := s.cache.Set(setCtx, sessionID, snapshot); err != nil {
					s.log.Warn(setCtx, "cache set failed", err)
				}
			}()
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart).Clone(), nil
}

// AddItem increases the line for productID by quantity, appending a new line
// when the cart has none. The resulting quantity must lie in [1, stock].
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (cart *domain.Cart, err error) {
	defer s.observe("add_item", time.Now(), &err)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	product, err := s.resolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, &InvalidQuantityError{ProductID: productID, Requested: quantity, Stock: product.Stock}
	}

	current, err := s.fetchOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items := current.CloneItems()
	if i := current.FindLine(productID); i >= 0 {
		items[i].Quantity += quantity
		if err := checkQuantity(product, items[i].Quantity); err != nil {
			return nil, err
		}
	} else {
		if err := checkQuantity(product, quantity); err != nil {
			return nil, err
		}
		items = append(items, domain.CartLine{ProductID: productID, Quantity: quantity})
	}

	return s.persist(ctx, current, items)
}

// UpdateQuantity sets the quantity of an existing line.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (cart *domain.Cart, err error) {
	defer s.observe("update_quantity", time.Now(), &err)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	product, err := s.resolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(product, quantity); err != nil {
		return nil, err
	}

	current, err := s.fetchOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := current.FindLine(productID)
	if i < 0 {
		return nil, ErrLineNotFound
	}
	items := current.CloneItems()
	items[i].Quantity = quantity

	return s.persist(ctx, current, items)
}

// RemoveItem drops the line for productID. A missing line is not an error
// and causes no write.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (cart *domain.Cart, err error) {
	defer s.observe("remove_item", time.Now(), &err)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	current, err := s.fetchOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := current.FindLine(productID)
	if i < 0 {
		return current, nil
	}
	items := current.CloneItems()
	items = append(items[:i], items[i+1:]...)

	return s.persist(ctx, current, items)
}

// ClearCart empties the session's cart. The cart itself is kept.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) (cart *domain.Cart, err error) {
	defer s.observe("clear", time.Now(), &err)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	current, err := s.fetchOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.IsEmpty() {
		return current, nil
	}

	return s.persist(ctx, current, []domain.CartLine{})
}

// RemoveOrderedItems subtracts the quantities of a placed order from the
// session's cart and drops lines that reach zero. Lines added after the order
// was placed are kept. The write is always conditional on the revision read.
func (s *CartService) RemoveOrderedItems(ctx context.Context, sessionID string, ordered []domain.OrderItem) (cart *domain.Cart, err error) {
	defer s.observe("remove_ordered", time.Now(), &err)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	current, err := s.fetchOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	orderedQty := make(map[string]int, len(ordered))
	for _, item := range ordered {
		orderedQty[item.ProductID] += item.Quantity
	}

	items := make([]domain.CartLine, 0, len(current.Items))
	changed := false
	for _, line := range current.Items {
		if q := orderedQty[line.ProductID]; q > 0 {
			changed = true
			line.Quantity -= q
			if line.Quantity <= 0 {
				continue
			}
		}
		items = append(items, line)
	}
	if !changed {
		return current, nil
	}

	return s.replace(ctx, current, current.Revision, items)
}

// ResolveCurrentCart resolves the cart as stored, bypassing the read cache.
// Checkout uses it so an order is never built from a stale cached copy.
func (s *CartService) ResolveCurrentCart(ctx context.Context, sessionID string) (*domain.ResolvedCart, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	cart, err := s.fetchOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, cart)
}

// ResolveCart loads the cart and joins every line with its live product.
// Lines whose product left the catalog are reported in Missing and pruned
// from the stored cart on a best-effort basis.
func (s *CartService) ResolveCart(ctx context.Context, sessionID string) (*domain.ResolvedCart, error) {
	cart, err := s.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, cart)
}

// Resolve joins an already loaded cart with live catalog data.
func (s *CartService) Resolve(ctx context.Context, cart *domain.Cart) (resolved *domain.ResolvedCart, err error) {
	defer s.observe("resolve", time.Now(), &err)

	lines := make([]domain.ResolvedLine, 0, len(cart.Items))
	missing := make([]string, 0)
	for _, line := range cart.Items {
		product, err := s.resolveProduct(ctx, line.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			missing = append(missing, line.ProductID)
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.ResolvedLine{CartLine: line, Product: *product})
	}

	if len(missing) > 0 {
		cart = s.pruneMissing(ctx, cart, lines)
	}

	return &domain.ResolvedCart{
		Cart:    cart,
		Lines:   lines,
		Missing: missing,
		Total:   ComputeTotal(lines),
	}, nil
}

func (s *CartService) pruneMissing(ctx context.Context, cart *domain.Cart, kept []domain.ResolvedLine) *domain.Cart {
	items := make([]domain.CartLine, 0, len(kept))
	for _, line := range kept {
		items = append(items, line.CartLine)
	}

	updated, err := s.persist(ctx, cart, items)
	if err != nil {
		s.log.Warn(ctx, "failed to prune products missing from catalog", err)
		return cart
	}
	return updated
}

func (s *CartService) fetchOrCreate(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.repo.FetchCart(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, storeErr(err)
	}

	cart, err = s.repo.CreateCart(ctx, sessionID, nil)
	if errors.Is(err, repository.ErrCartExists) {
		// lost the creation race to a concurrent request
		cart, err = s.repo.FetchCart(ctx, sessionID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	s.log.Debug(s.log.WithField(ctx, "cart_id", cart.ID), "cart created")
	return cart, nil
}

func (s *CartService) persist(ctx context.Context, current *domain.Cart, items []domain.CartLine) (*domain.Cart, error) {
	expected := current.Revision
	if s.mode == ModeLastWriteWins {
		expected = repository.AnyRevision
	}
	return s.replace(ctx, current, expected, items)
}

func (s *CartService) replace(ctx context.Context, current *domain.Cart, expected int64, items []domain.CartLine) (*domain.Cart, error) {
	updated, err := s.repo.ReplaceItems(ctx, current.ID, expected, items)
	if err != nil {
		if errors.Is(err, repository.ErrRevisionMismatch) || errors.Is(err, repository.ErrCartNotFound) {
			return nil, ErrConflict
		}
		return nil, storeErr(err)
	}

	s.invalidateCache(current.SessionID)
	return updated, nil
}

func (s *CartService) resolveProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err == nil {
		return product, nil
	}
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	return nil, storeErr(err)
}

func (s *CartService) invalidateCache(sessionID string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.log.Warn(ctx, "cache invalidate failed", err)
	}
}

func (s *CartService) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveOperation(operation, outcome(*err), time.Since(start))
}

func checkQuantity(product *domain.Product, quantity int) error {
	if quantity < 1 || quantity > product.Stock {
		return &InvalidQuantityError{ProductID: product.ID, Requested: quantity, Stock: product.Stock}
	}
	return nil
}
