package repository

import (
	"context"
	"sync"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps carts in process memory. Used for local runs and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	bySession map[string]string       // sessionID -> cartID
	carts     map[string]*domain.Cart // cartID -> cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bySession: make(map[string]string),
		carts:     make(map[string]*domain.Cart),
	}
}

func (m *MemoryRepository) FetchCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySession[sessionID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return m.carts[id].Clone(), nil
}

func (m *MemoryRepository) CreateCart(ctx context.Context, sessionID string, items []domain.CartLine) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySession[sessionID]; ok {
		return nil, ErrCartExists
	}

	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Items:     normalizeItems(items),
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.bySession[sessionID] = cart.ID
	m.carts[cart.ID] = cart

	return cart.Clone(), nil
}

func (m *MemoryRepository) ReplaceItems(ctx context.Context, cartID string, expectedRevision int64, items []domain.CartLine) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartID]
	if !ok {
		return nil, ErrCartNotFound
	}
	if expectedRevision != AnyRevision && cart.Revision != expectedRevision {
		return nil, ErrRevisionMismatch
	}

	cart.Items = normalizeItems(items)
	cart.Revision++
	cart.UpdatedAt = time.Now().UTC()

	return cart.Clone(), nil
}
