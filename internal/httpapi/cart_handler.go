package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CartService is the cart API the handlers depend on.
type CartService interface {
	ResolveCart(ctx context.Context, sessionID string) (*domain.ResolvedCart, error)
	Resolve(ctx context.Context, cart *domain.Cart) (*domain.ResolvedCart, error)
	AddItem(ctx context.Context, sessionID, productID string, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartService
	log     *logger.Logger
	timeout time.Duration
}

func NewCartHandler(carts CartService, log *logger.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		log:     log,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  *int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CartLineView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Stock     int             `json:"stock"`
	ImageURL  string          `json:"image_url"`
	Category  string          `json:"category"`
}

type CartView struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Revision  int64           `json:"revision"`
	Items     []CartLineView  `json:"items"`
	Missing   []string        `json:"missing"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	ItemCount int             `json:"item_count"`
	UpdatedAt time.Time       `json:"updated_at"`

	// StalePrices marks a view rendered without catalog data. Lines carry
	// only product id and quantity and the total is zero.
	StalePrices bool `json:"stale_prices,omitempty"`
}

func newCartView(rc *domain.ResolvedCart) CartView {
	view := CartView{
		ID:        rc.Cart.ID,
		SessionID: rc.Cart.SessionID,
		Revision:  rc.Cart.Revision,
		Items:     make([]CartLineView, 0, len(rc.Lines)),
		Missing:   rc.Missing,
		Total:     rc.Total,
		Currency:  domain.DefaultCurrency,
		UpdatedAt: rc.Cart.UpdatedAt,
	}
	if view.Missing == nil {
		view.Missing = []string{}
	}
	for _, line := range rc.Lines {
		view.Items = append(view.Items, CartLineView{
			ProductID: line.ProductID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.EffectivePrice(),
			Subtotal:  line.Subtotal(),
			Stock:     line.Product.Stock,
			ImageURL:  line.Product.ImageURL,
			Category:  line.Product.Category,
		})
		view.ItemCount += line.Quantity
	}
	return view
}

// newStoredCartView renders the persisted lines when the catalog cannot price them.
func newStoredCartView(cart *domain.Cart) CartView {
	view := CartView{
		ID:          cart.ID,
		SessionID:   cart.SessionID,
		Revision:    cart.Revision,
		Items:       make([]CartLineView, 0, len(cart.Items)),
		Missing:     []string{},
		Total:       decimal.Zero,
		Currency:    domain.DefaultCurrency,
		UpdatedAt:   cart.UpdatedAt,
		StalePrices: true,
	}
	for _, line := range cart.Items {
		view.Items = append(view.Items, CartLineView{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: decimal.Zero,
			Subtotal:  decimal.Zero,
		})
		view.ItemCount += line.Quantity
	}
	return view
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resolved, err := h.carts.ResolveCart(ctx, SessionFromContext(ctx))
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}

	respondJSON(ctx, h.log, w, http.StatusOK, newCartView(resolved))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeBody(w, r, h.log, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.carts.AddItem(ctx, SessionFromContext(ctx), req.ProductID, quantity)
	h.respondCart(ctx, w, http.StatusCreated, cart, err)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, h.log, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, SessionFromContext(ctx), productID, *req.Quantity)
	h.respondCart(ctx, w, http.StatusOK, cart, err)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	cart, err := h.carts.RemoveItem(ctx, SessionFromContext(ctx), productID)
	h.respondCart(ctx, w, http.StatusOK, cart, err)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.ClearCart(ctx, SessionFromContext(ctx))
	h.respondCart(ctx, w, http.StatusOK, cart, err)
}

// respondCart renders a mutated cart with live prices. The write is already
// committed, so a pricing failure still answers with the success status.
func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, status int, cart *domain.Cart, err error) {
	if err != nil {
		handleServiceError(ctx, h.log, w, err)
		return
	}

	resolved, err := h.carts.Resolve(ctx, cart)
	if err != nil {
		h.log.Warn(ctx, "cart saved but pricing failed", err)
		respondJSON(ctx, h.log, w, status, newStoredCartView(cart))
		return
	}

	respondJSON(ctx, h.log, w, status, newCartView(resolved))
}
