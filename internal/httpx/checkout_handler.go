package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/shopworks/commerce-core/internal/orders"
	"github.com/shopworks/commerce-core/internal/redisx"
)

type CheckoutHandler struct {
	Checkout *orders.CheckoutService
	Redis    *redis.Client
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkoutAll)
	r.Post("/checkout/items/{id}", h.checkoutSingle)
	r.Get("/checkout/validate", h.validate)
}

type checkoutReq struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	CustomerNotes   string `json:"customer_notes,omitempty"`
}

type checkoutResp struct {
	PaymentHash          string   `json:"payment_hash"`
	PaymentID            string   `json:"payment_id"`
	OrderIDs             []string `json:"order_ids"`
	Amount               string   `json:"amount"`
	ExpiresAt            string   `json:"expires_at"`
	TimeRemainingSeconds int64    `json:"time_remaining_seconds"`
}

func (h *CheckoutHandler) checkoutAll(w http.ResponseWriter, r *http.Request) {
	h.handleCheckout(w, r, "")
}

func (h *CheckoutHandler) checkoutSingle(w http.ResponseWriter, r *http.Request) {
	h.handleCheckout(w, r, chi.URLParam(r, "id"))
}

func (h *CheckoutHandler) handleCheckout(w http.ResponseWriter, r *http.Request, cartItemID string) {
	user := userID(r)
	if user == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Fast-path duplicate suppression on the client request id. The DB
	// remains the source of truth; losing this key only loses the shortcut.
	var idemKey string
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" && h.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemCheckout, user, reqID)
		if hash, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && hash != "" {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":        "duplicate checkout request",
				"payment_hash": hash,
			})
			return
		}
	}

	in := orders.CheckoutInput{
		UserID:          user,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CustomerNotes:   req.CustomerNotes,
	}

	var result orders.CheckoutResult
	var err error
	if cartItemID == "" {
		result, err = h.Checkout.CheckoutAll(ctx, in)
	} else {
		result, err = h.Checkout.CheckoutSingle(ctx, in, cartItemID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, result.PaymentHash, redisx.TTLIdempotency).Err()
	}

	orderIDs := make([]string, 0, len(result.Orders))
	for _, o := range result.Orders {
		orderIDs = append(orderIDs, o.ID)
	}
	writeJSON(w, http.StatusCreated, checkoutResp{
		PaymentHash:          result.PaymentHash,
		PaymentID:            result.Payment.ID,
		OrderIDs:             orderIDs,
		Amount:               result.Payment.Amount.StringFixed(2),
		ExpiresAt:            result.ExpiresAt.Format(time.RFC3339),
		TimeRemainingSeconds: result.TimeRemainingSeconds,
	})
}

func (h *CheckoutHandler) validate(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	validations, err := h.Checkout.ValidateForCheckout(ctx, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": validations})
}
