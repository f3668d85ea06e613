package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/catalog"
	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	catalog catalog.Catalog
	log     *logger.Logger
	timeout time.Duration
}

func NewProductHandler(c catalog.Catalog, log *logger.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		log:     log,
		timeout: timeout,
	}
}

type ProductView struct {
	*domain.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
	InStock        bool            `json:"in_stock"`
}

func newProductView(p *domain.Product) ProductView {
	return ProductView{
		Product:        p,
		EffectivePrice: p.EffectivePrice(),
		InStock:        p.InStock(),
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category != "" && !catalog.ValidCategory(category) {
		respondError(ctx, h.log, w, http.StatusBadRequest, "invalid_category", fmt.Sprintf("unknown category %q", category))
		return
	}

	products, err := h.catalog.ListProducts(ctx, category)
	if err != nil {
		handleServiceError(ctx, h.log, w, catalogErr(err))
		return
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	respondJSON(ctx, h.log, w, http.StatusOK, map[string]any{"products": views})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, h.log, w, catalogErr(err))
		return
	}

	respondJSON(ctx, h.log, w, http.StatusOK, newProductView(product))
}

// catalogErr reports every catalog failure except a missing product as unavailability.
func catalogErr(err error) error {
	if errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, service.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", service.ErrStoreUnavailable, err)
}
