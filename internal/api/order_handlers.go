package api

import (
	"errors"
	"net/http"

	"github.com/example/ec-checkout/internal/backend"
	"github.com/example/ec-checkout/internal/infrastructure/store"
)

type OrdersResponse struct {
	Orders []backend.OrderRecord `json:"orders"`
}

// GET /api/v1/orders
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	userID, err := h.userID(r.Context(), p)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	p.UserID = userID

	records, err := h.history.ListOrders(r.Context(), p)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	if records == nil {
		records = []backend.OrderRecord{}
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: records})
}

// GET /api/v1/orders/last
func (h *Handlers) LastOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	userID, err := h.userID(r.Context(), p)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	o, err := h.orders.GetLast(r.Context(), userID)
	if errors.Is(err, store.ErrCacheMiss) {
		respondError(w, http.StatusNotFound, "no_recent_order", "no order placed yet")
		return
	}
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
