package httpx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/shopworks/commerce-core/internal/cart"
	"github.com/shopworks/commerce-core/internal/orders"
	"github.com/shopworks/commerce-core/internal/stock"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&stock.InsufficientStockError{Unit: stock.UnitRef{ProductID: "p"}, Requested: 2, Available: 1}, http.StatusConflict},
		{stock.ErrInvalidQuantity, http.StatusBadRequest},
		{cart.ErrCartEmpty, http.StatusBadRequest},
		{cart.ErrItemNotFound, http.StatusNotFound},
		{orders.ErrOrderNotFound, http.StatusNotFound},
		{orders.ErrInvalidPaymentCredentials, http.StatusForbidden},
		{orders.ErrPaymentExpired, http.StatusGone},
		{orders.ErrInvalidTransition, http.StatusConflict},
		{orders.ErrReservationFailed, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}

	// Wrapped domain errors still map.
	wrapped := errors.Join(errors.New("context"), orders.ErrPaymentExpired)
	if got := statusFor(wrapped); got != http.StatusGone {
		t.Errorf("statusFor(wrapped) = %d, want 410", got)
	}
}
