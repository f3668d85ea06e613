package repository

import (
	"context"
	"errors"

	"github.com/DotZohaib/ShopSphere/internal/domain"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartExists       = errors.New("cart already exists for session")
	ErrRevisionMismatch = errors.New("cart revision mismatch")
)

// AnyRevision disables the revision check in ReplaceItems.
const AnyRevision int64 = -1

// CartRepository is the cart store contract. Every write replaces the whole item list.
type CartRepository interface {
	// FetchCart returns ErrCartNotFound when the session has no cart yet.
	FetchCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	// CreateCart assigns the id and revision 1. Returns ErrCartExists if the session already has one.
	CreateCart(ctx context.Context, sessionID string, items []domain.CartLine) (*domain.Cart, error)
	// ReplaceItems stores items when the stored revision equals expectedRevision
	// (or unconditionally with AnyRevision) and returns the cart with the bumped revision.
	ReplaceItems(ctx context.Context, cartID string, expectedRevision int64, items []domain.CartLine) (*domain.Cart, error)
}

func normalizeItems(items []domain.CartLine) []domain.CartLine {
	if items == nil {
		return []domain.CartLine{}
	}
	out := make([]domain.CartLine, len(items))
	copy(out, items)
	return out
}
