package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/catalog"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRequestTimeout = 30 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Carts    CartService
	Catalog  catalog.Catalog
	Checkout CheckoutService
	Log      *logger.Logger

	// Gatherer backs /metrics; the route is not mounted when nil.
	Gatherer     prometheus.Gatherer
	HealthChecks map[string]HealthCheck

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	SecureCookies  bool
}

func NewRouter(deps Deps) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	cartHandler := NewCartHandler(deps.Carts, deps.Log, timeout)
	productHandler := NewProductHandler(deps.Catalog, deps.Log, timeout)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Log, timeout)

	r := chi.NewRouter()
	r.Use(
		Recoverer(deps.Log),
		RequestID(deps.Log),
		Logging(deps.Log),
		middleware.Compress(5),
		MaxBody(deps.MaxBodyBytes),
	)

	r.Get("/health", healthHandler(deps.Log, deps.HealthChecks))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{id}", productHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(Session(deps.Log, deps.SecureCookies))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", checkoutHandler.ListOrders)
				r.Get("/{id}", checkoutHandler.GetOrder)
			})
		})
	})

	return r
}

func healthHandler(logg *logger.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		respondJSON(ctx, logg, w, status, map[string]any{"status": overall, "checks": results})
	}
}
