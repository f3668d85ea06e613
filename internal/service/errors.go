package service

import (
	"errors"
	"fmt"
)

var (
	ErrStoreUnavailable = errors.New("cart store unavailable")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrProductNotFound  = errors.New("product not found")
	ErrConflict         = errors.New("cart was modified concurrently")
	ErrLineNotFound     = errors.New("cart line not found")
	ErrInvalidSession   = errors.New("session id is required")
)

// InvalidQuantityError reports a quantity outside [1, stock]. It matches ErrInvalidQuantity.
type InvalidQuantityError struct {
	ProductID string
	Requested int
	Stock     int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s: must be between 1 and %d", e.Requested, e.ProductID, e.Stock)
}

func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// outcome is the metrics label for an operation result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrLineNotFound):
		return "line_not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
