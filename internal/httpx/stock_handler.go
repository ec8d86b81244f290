package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopworks/commerce-core/internal/stock"
)

type StockHandler struct {
	Stock *stock.Service
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Get("/stock/availability", h.checkAvailability)
}

func (h *StockHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		quantity = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ref := stock.UnitRef{ProductID: productID, Size: r.URL.Query().Get("size")}
	avail, err := h.Stock.CheckAvailability(ctx, ref, quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}
