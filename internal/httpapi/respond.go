package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/DotZohaib/ShopSphere/internal/catalog"
	"github.com/DotZohaib/ShopSphere/internal/checkout"
	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func respondJSON(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logg.Error(ctx, "failed to encode response", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error","code":"internal_error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logg.Warn(ctx, "failed to write response", err)
	}
}

func respondError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, status int, code, message string) {
	respondJSON(ctx, logg, w, status, ErrorResponse{Error: message, Code: code})
}

// decodeBody reads a JSON body into dst and runs struct validation on it.
// It writes the 400 response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, logg *logger.Logger, dst any) bool {
	if !decodeJSON(w, r, logg, dst) {
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondError(r.Context(), logg, w, http.StatusBadRequest, "invalid_request", err.Error())
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		respondJSON(r.Context(), logg, w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "invalid_request",
			Details: fields,
		})
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, logg *logger.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(r.Context(), logg, w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondError(r.Context(), logg, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleServiceError maps service and store errors to HTTP responses.
func handleServiceError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	var (
		qtyErr *service.InvalidQuantityError
		valErr *checkout.ValidationError
	)

	switch {
	case errors.As(err, &valErr):
		respondJSON(ctx, logg, w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "checkout details are invalid",
			Code:    "validation_failed",
			Details: valErr.Fields,
		})
	case errors.As(err, &qtyErr):
		respondJSON(ctx, logg, w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: qtyErr.Error(),
			Code:  "invalid_quantity",
			Details: map[string]any{
				"product_id": qtyErr.ProductID,
				"requested":  qtyErr.Requested,
				"stock":      qtyErr.Stock,
			},
		})
	case errors.Is(err, service.ErrInvalidQuantity):
		respondError(ctx, logg, w, http.StatusUnprocessableEntity, "invalid_quantity", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(ctx, logg, w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, service.ErrInvalidSession):
		respondError(ctx, logg, w, http.StatusBadRequest, "invalid_session", err.Error())
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, catalog.ErrProductNotFound):
		respondError(ctx, logg, w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, service.ErrLineNotFound):
		respondError(ctx, logg, w, http.StatusNotFound, "line_not_found", err.Error())
	case errors.Is(err, checkout.ErrOrderNotFound):
		respondError(ctx, logg, w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, service.ErrConflict):
		respondError(ctx, logg, w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, checkout.ErrDuplicateCheckout):
		respondError(ctx, logg, w, http.StatusConflict, "duplicate_checkout", err.Error())
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, catalog.ErrUnavailable):
		logg.Error(ctx, "request.unavailable", err)
		respondError(ctx, logg, w, http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable")
	default:
		logg.Error(ctx, "request.error", err)
		respondError(ctx, logg, w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
