package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopworks/commerce-core/internal/cart"
	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/orders"
	"github.com/shopworks/commerce-core/internal/payments"
	"github.com/shopworks/commerce-core/internal/stock"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP codes. Validation errors are never
// retried automatically; the caller must resubmit.
func statusFor(err error) int {
	switch {
	case stock.IsInsufficientStock(err):
		return http.StatusConflict
	case errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrSizeRequired),
		errors.Is(err, cart.ErrCartEmpty),
		errors.Is(err, orders.ErrShippingAddressRequired),
		errors.Is(err, orders.ErrInvalidPaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, stock.ErrUnitNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, payments.ErrPaymentNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidPaymentCredentials):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrPaymentExpired):
		return http.StatusGone
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrReservationFailed),
		errors.Is(err, orders.ErrStockProcessingFailed),
		errors.Is(err, cart.ErrDuplicateItem):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// userID comes from the auth layer upstream; authentication itself is not
// this service's concern.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
