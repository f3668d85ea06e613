package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/checkout"
	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

type CheckoutService interface {
	PlaceOrder(ctx context.Context, sessionID, idempotencyKey string, details checkout.ShopperDetails) (*domain.Order, error)
	GetOrder(ctx context.Context, sessionID string, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, sessionID string) ([]*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	log      *logger.Logger
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, log *logger.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		log:      log,
		timeout:  timeout,
	}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := r.Header.Get(idempotencyHeader)
	if len(key) > maxIdempotencyKeyLen {
		respondError(ctx, h.log, w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long")
		return
	}

	var details checkout.ShopperDetails
	if !decodeJSON(w, r, h.log, &details) {
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, SessionFromContext(ctx), key, details)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}

	respondJSON(ctx, h.log, w, http.StatusCreated, order)
}

func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.checkout.ListOrders(ctx, SessionFromContext(ctx))
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}

	respondJSON(ctx, h.log, w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, h.log, w, checkout.ErrOrderNotFound)
		return
	}

	order, err := h.checkout.GetOrder(ctx, SessionFromContext(ctx), id)
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}

	respondJSON(ctx, h.log, w, http.StatusOK, order)
}
