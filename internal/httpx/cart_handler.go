package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopworks/commerce-core/internal/cart"
)

type CartHandler struct {
	Carts *cart.Service
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.getSummary)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{id}", h.updateQuantity)
	r.Delete("/cart/items/{id}", h.removeItem)
	r.Delete("/cart", h.clear)
}

type addItemReq struct {
	ProductID  string         `json:"product_id"`
	Size       string         `json:"size,omitempty"`
	Quantity   int            `json:"quantity"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.Carts.AddItem(ctx, cart.AddItemInput{
		UserID:     user,
		ProductID:  req.ProductID,
		Size:       req.Size,
		Quantity:   req.Quantity,
		Properties: req.Properties,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       item.ID,
		"quantity": item.Quantity,
	})
}

func (h *CartHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.Carts.UpdateQuantity(ctx, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       item.ID,
		"quantity": item.Quantity,
	})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.RemoveItem(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	report, err := h.Carts.Clear(ctx, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *CartHandler) getSummary(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	summary, err := h.Carts.GetSummary(ctx, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
