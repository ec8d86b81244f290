package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopworks/commerce-core/internal/orders"
)

type AdminHandler struct {
	Reconciler *orders.Reconciler
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Get("/admin/orders/expired/count", h.expiredCount)
	r.Post("/admin/orders/cleanup", h.runCleanup)
}

func (h *AdminHandler) expiredCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := h.Reconciler.ExpiredCount(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expired_orders_count": count,
		"needs_cleanup":        count > 0,
	})
}

func (h *AdminHandler) runCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	dryRun := r.URL.Query().Get("dry_run") == "true"
	report, err := h.Reconciler.RunCleanup(ctx, dryRun)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
