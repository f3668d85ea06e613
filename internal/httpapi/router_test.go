package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DotZohaib/ShopSphere/internal/catalog"
	"github.com/DotZohaib/ShopSphere/internal/checkout"
	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/DotZohaib/ShopSphere/internal/repository"
	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	err      error
	panics   bool
}

func newStubCatalog(products ...*domain.Product) *stubCatalog {
	c := &stubCatalog{products: make(map[string]*domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *stubCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *stubCatalog) ListProducts(_ context.Context, category string) ([]*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panics {
		panic("catalog exploded")
	}
	if c.err != nil {
		return nil, c.err
	}
	list := make([]*domain.Product, 0)
	for _, p := range c.products {
		if category == "" || p.Category == category {
			list = append(list, p)
		}
	}
	return list, nil
}

type mockCheckout struct {
	order   *domain.Order
	err     error
	gotKey  string
	gotSess string
}

func (m *mockCheckout) PlaceOrder(_ context.Context, sessionID, key string, details checkout.ShopperDetails) (*domain.Order, error) {
	m.gotKey = key
	m.gotSess = sessionID
	if m.err != nil {
		return nil, m.err
	}
	details.Normalize()
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return m.order, nil
}

func (m *mockCheckout) GetOrder(_ context.Context, sessionID string, id uuid.UUID) (*domain.Order, error) {
	if m.order == nil || m.order.ID != id || m.order.SessionID != sessionID {
		return nil, checkout.ErrOrderNotFound
	}
	return m.order, nil
}

func (m *mockCheckout) ListOrders(_ context.Context, sessionID string) ([]*domain.Order, error) {
	if m.order != nil && m.order.SessionID == sessionID {
		return []*domain.Order{m.order}, nil
	}
	return []*domain.Order{}, nil
}

func product(id, category, price string, discount int64, stock int) *domain.Product {
	p := &domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: category,
	}
	if discount > 0 {
		p.DiscountPercent = decimal.NewNullDecimal(decimal.NewFromInt(discount))
	}
	return p
}

type testEnv struct {
	handler  http.Handler
	catalog  *stubCatalog
	checkout *mockCheckout
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, checks map[string]HealthCheck) *testEnv {
	t.Helper()
	cat := newStubCatalog(
		product("prd-001", catalog.CategoryJackets, "120.00", 25, 12),
		product("prd-002", catalog.CategoryShirts, "40.00", 0, 3),
		product("prd-003", catalog.CategoryPants, "55.00", 0, 0),
	)
	carts := service.NewCartService(repository.NewMemoryRepository(), nil, cat)
	co := &mockCheckout{}
	reg := prometheus.NewRegistry()

	h := NewRouter(Deps{
		Carts:        carts,
		Catalog:      cat,
		Checkout:     co,
		Log:          logger.Nop(),
		Gatherer:     reg,
		HealthChecks: checks,
		MaxBodyBytes: 1 << 20,
	})
	return &testEnv{handler: h, catalog: cat, checkout: co, registry: reg}
}

func (e *testEnv) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartView {
	t.Helper()
	var view CartView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetCart_IssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, cookies[0].Value)

	view := decodeCart(t, rec)
	assert.Equal(t, cookies[0].Value, view.SessionID)
	assert.Empty(t, view.Items)
	assert.NotNil(t, view.Missing)
	assert.True(t, view.Total.IsZero())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestGetCart_SessionFromCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "cookie-session"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "cookie-session", decodeCart(t, rec).SessionID)
}

func TestSession_TooLong(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", strings.Repeat("s", maxSessionIDLen+1), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_session", decodeError(t, rec).Code)
}

func TestAddItem_MergesAndPrices(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001"})
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decodeCart(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
	assert.True(t, view.Items[0].UnitPrice.Equal(decimal.NewFromInt(90)), "got %s", view.Items[0].UnitPrice)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001", "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-002", "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	view = decodeCart(t, rec)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "prd-001", view.Items[0].ProductID)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, 4, view.ItemCount)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(260)), "got %s", view.Total)
	assert.Equal(t, domain.DefaultCurrency, view.Currency)
}

func TestAddItem_ExceedsStock(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-002", "quantity": 4})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "invalid_quantity", resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "prd-002", details["product_id"])
	assert.EqualValues(t, 4, details["requested"])
	assert.EqualValues(t, 3, details["stock"])

	view := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", "s1", nil))
	assert.Empty(t, view.Items)
}

func TestAddItem_OutOfStock(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-003"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product_not_found", decodeError(t, rec).Code)
}

func TestAddItem_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"quantity": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "required", details["product_id"])
}

func TestAddItem_CatalogUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.catalog.err = errors.New("sqlite: database is locked")

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decodeError(t, rec).Code)
}

func TestUpdateQuantity(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001"}).Code)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/items/prd-001", "s1", map[string]any{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeCart(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(450)), "got %s", view.Total)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/prd-001", "s1", map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/prd-001", "s1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/prd-002", "s1", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "line_not_found", decodeError(t, rec).Code)
}

func TestRemoveItemAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001"})
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-002"})

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/prd-001", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeCart(t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "prd-002", view.Items[0].ProductID)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart/items/prd-001", "s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestRemoveItem_CatalogDownAfterWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001"})
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-002", "quantity": 2})

	env.catalog.mu.Lock()
	env.catalog.err = errors.New("sqlite: database is locked")
	env.catalog.mu.Unlock()

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/prd-001", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeCart(t, rec)
	assert.True(t, view.StalePrices)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "prd-002", view.Items[0].ProductID)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, 2, view.ItemCount)

	env.catalog.mu.Lock()
	env.catalog.err = nil
	env.catalog.mu.Unlock()

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	assert.False(t, view.StalePrices)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "prd-002", view.Items[0].ProductID)
}

func TestGetCart_ReportsMissingProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-001"})
	env.do(t, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"product_id": "prd-002"})

	env.catalog.mu.Lock()
	delete(env.catalog.products, "prd-002")
	env.catalog.mu.Unlock()

	view := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", "s1", nil))
	assert.Len(t, view.Items, 1)
	assert.Equal(t, []string{"prd-002"}, view.Missing)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(90)))
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/products?category=jackets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Products []struct {
			ID             string          `json:"id"`
			EffectivePrice decimal.Decimal `json:"effective_price"`
			InStock        bool            `json:"in_stock"`
		} `json:"products"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "prd-001", resp.Products[0].ID)
	assert.True(t, resp.Products[0].EffectivePrice.Equal(decimal.NewFromInt(90)))
	assert.True(t, resp.Products[0].InStock)

	rec = env.do(t, http.MethodGet, "/api/v1/products?category=hats", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/products/prd-003", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		ID      string `json:"id"`
		InStock bool   `json:"in_stock"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "prd-003", view.ID)
	assert.False(t, view.InStock)

	rec = env.do(t, http.MethodGet, "/api/v1/products/prd-999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts_CatalogUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)

	env.catalog.err = catalog.ErrUnavailable
	rec := env.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.catalog.err = errors.New("disk I/O error")
	rec = env.do(t, http.MethodGet, "/api/v1/products/prd-001", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func validDetails() map[string]string {
	return map[string]string{
		"first_name":       "Ada",
		"last_name":        "Lovelace",
		"email":            "ada@example.com",
		"address":          "12 Analytical St",
		"city":             "London",
		"zip_code":         "N1 9GU",
		"card_type":        "visa",
		"card_holder_name": "Ada Lovelace",
		"card_number":      "4242 4242 4242 4242",
		"expiry_month":     "09",
		"expiry_year":      "2030",
		"cvv":              "123",
	}
}

func TestCheckout_Created(t *testing.T) {
	env := newTestEnv(t, nil)
	env.checkout.order = &domain.Order{
		ID:          uuid.New(),
		SessionID:   "s1",
		TotalAmount: decimal.NewFromInt(90),
		Currency:    domain.DefaultCurrency,
		Items:       []domain.OrderItem{},
	}

	body, _ := json.Marshal(validDetails())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body))
	req.Header.Set(sessionHeader, "s1")
	req.Header.Set(idempotencyHeader, "key-1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "key-1", env.checkout.gotKey)
	assert.Equal(t, "s1", env.checkout.gotSess)

	var order domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&order))
	assert.Equal(t, env.checkout.order.ID, order.ID)
}

func TestCheckout_ValidationFailed(t *testing.T) {
	env := newTestEnv(t, nil)

	details := validDetails()
	details["email"] = "not-an-email"
	details["cvv"] = "12"
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", "s1", details)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation_failed", resp.Code)
	fields, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "cvv")
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty cart", checkout.ErrEmptyCart, http.StatusUnprocessableEntity},
		{"duplicate", checkout.ErrDuplicateCheckout, http.StatusConflict},
		{"stock dropped", &service.InvalidQuantityError{ProductID: "prd-002", Requested: 3, Stock: 1}, http.StatusUnprocessableEntity},
		{"store down", service.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.checkout.err = tt.err

			rec := env.do(t, http.MethodPost, "/api/v1/checkout", "s1", validDetails())
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCheckout_IdempotencyKeyTooLong(t *testing.T) {
	env := newTestEnv(t, nil)

	body, _ := json.Marshal(validDetails())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body))
	req.Header.Set(sessionHeader, "s1")
	req.Header.Set(idempotencyHeader, strings.Repeat("k", maxIdempotencyKeyLen+1))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders(t *testing.T) {
	env := newTestEnv(t, nil)
	env.checkout.order = &domain.Order{ID: uuid.New(), SessionID: "s1", Items: []domain.OrderItem{}}

	rec := env.do(t, http.MethodGet, "/api/v1/orders", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Orders []domain.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Orders, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+env.checkout.order.ID.String(), "s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+env.checkout.order.ID.String(), "s2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", "s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decodeError(t, rec).Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env = newTestEnv(t, map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["redis"])
	assert.Equal(t, "connection refused", resp.Checks["postgres"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_requests_total", Help: "test"})
	env.registry.MustRegister(counter)
	counter.Inc()

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_requests_total 1")
}

func TestRecoverer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.catalog.panics = true

	rec := env.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Code)
}

func TestRequestID_Propagated(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}
