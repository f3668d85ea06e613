package catalog

import (
	"context"
	"errors"

	"github.com/DotZohaib/ShopSphere/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

const (
	CategoryJackets    = "jackets"
	CategoryShirts     = "shirts"
	CategoryPants      = "pants"
	CategoryFlashSales = "flash-sales"
)

// Resolver looks up a single product by id. Implementations return
// ErrProductNotFound when the id does not exist.
type Resolver interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Catalog is the read-only product source behind the storefront.
type Catalog interface {
	Resolver
	ListProducts(ctx context.Context, category string) ([]*domain.Product, error)
}

func ValidCategory(category string) bool {
	switch category {
	case "", CategoryJackets, CategoryShirts, CategoryPants, CategoryFlashSales:
		return true
	}
	return false
}
