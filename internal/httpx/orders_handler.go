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

type OrdersHandler struct {
	Lifecycle *orders.Lifecycle
	Redis     *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/orders/{id}/payment", h.getPaymentStatus)
	r.Post("/orders/{id}/status", h.updateStatus)
	r.Post("/payments/confirm", h.confirmPayment)
}

func (h *OrdersHandler) getPaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// Short-TTL cache; staleness here only affects the countdown display.
	key := fmt.Sprintf(redisx.KeyOrderPayment, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	info, err := h.Lifecycle.GetPaymentStatus(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Redis != nil {
		if b, err := json.Marshal(info); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLPaymentCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, info)
}

type updateStatusReq struct {
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Lifecycle.UpdateStatus(ctx, chi.URLParam(r, "id"), orders.Status(req.Status), req.Actor, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, order.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

type confirmPaymentReq struct {
	PaymentHash string `json:"payment_hash"`
	PaymentKey  string `json:"payment_key"`
}

// confirmPayment is the synchronous gateway callback; the async path comes
// in over the payment.gateway.callback topic.
func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PaymentHash == "" || req.PaymentKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing payment credentials"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	confirmed, err := h.Lifecycle.ConfirmPayment(ctx, req.PaymentHash, req.PaymentKey)
	if err != nil {
		writeError(w, err)
		return
	}

	orderIDs := make([]string, 0, len(confirmed))
	for _, o := range confirmed {
		orderIDs = append(orderIDs, o.ID)
		h.invalidate(ctx, o.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_hash": req.PaymentHash,
		"order_ids":    orderIDs,
		"status":       "completed",
	})
}

func (h *OrdersHandler) invalidate(ctx context.Context, orderID string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderPayment, orderID)).Err()
}
