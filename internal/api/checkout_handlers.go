package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/go-chi/chi/v5"
)

type CreateSessionRequest struct {
	// Items seeds a buy-now session. Empty means checkout of the cart.
	// Unit prices are taken as sent and only drive the displayed total and
	// the gateway charge; the buy-now order endpoint must re-price the order
	// from its product ids before accepting it.
	Items []order.Item `json:"items,omitempty"`
}

type SelectAddressRequest struct {
	Index *int `json:"index,omitempty"`
	order.Address
}

type SelectPaymentMethodRequest struct {
	Method string `json:"method"`
}

type SubmitResponse struct {
	Session checkout.Snapshot `json:"session"`
	Payment *payment.Options  `json:"payment,omitempty"`
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// session loads the session named in the URL for the calling principal.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*checkout.Controller, bool) {
	p, ok := principal(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, false
	}
	c, err := h.sessions.Get(chi.URLParam(r, "id"), p)
	if err != nil {
		respondCheckoutError(w, err)
		return nil, false
	}
	return c, true
}

// POST /api/v1/checkout/sessions
// Buy-now items carry client-supplied prices. They must be positive; the
// backend remains the authority on what the order costs.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	for _, item := range req.Items {
		if err := item.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_item", err.Error())
			return
		}
		if !item.Price.IsPositive() {
			respondError(w, http.StatusBadRequest, "invalid_item", "price for "+item.ProductID+" must be positive")
			return
		}
	}

	c, err := h.sessions.Create(r.Context(), p, req.Items)
	if c == nil {
		respondCheckoutError(w, err)
		return
	}
	// A load failure is recorded on the session; the client may reload it.
	if err != nil {
		if kind, _ := checkout.KindOf(err); kind != checkout.KindLoad {
			respondCheckoutError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, c.Snapshot())
}

// GET /api/v1/checkout/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// POST /api/v1/checkout/sessions/{id}/reload
func (h *Handlers) ReloadSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := c.Initialize(r.Context()); err != nil {
		if kind, _ := checkout.KindOf(err); kind != checkout.KindLoad {
			respondCheckoutError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// PUT /api/v1/checkout/sessions/{id}/address
func (h *Handlers) SelectAddress(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var err error
	if req.Index != nil {
		err = c.SelectAddressIndex(*req.Index)
	} else {
		err = c.SelectAddress(req.Address)
	}
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// PUT /api/v1/checkout/sessions/{id}/payment-method
func (h *Handlers) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectPaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	method, err := order.ParsePaymentMethod(req.Method)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
		return
	}

	if err := c.SelectPaymentMethod(method); err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// POST /api/v1/checkout/sessions/{id}/submit
//
// Cash on delivery answers with the placed order. Online answers 202 with the
// widget options of the pending attempt; the outcome arrives through the
// payment callbacks and is visible on the session.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	// The submission outlives the request; only Cancel or Abandon stop it.
	results, err := c.Start(context.WithoutCancel(r.Context()))
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	snap := c.Snapshot()
	if snap.PaymentMethod != order.PaymentOnline || snap.Attempt == nil || h.payments == nil {
		h.await(w, r, c, results)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.optionsWait)
	defer cancel()
	opts, err := h.payments.Options(ctx, snap.Attempt.ID)
	if err != nil {
		// The attempt resolved before the widget opened
		h.await(w, r, c, results)
		return
	}
	respondJSON(w, http.StatusAccepted, SubmitResponse{Session: c.Snapshot(), Payment: &opts})
}

// await answers with the submission result, or 202 with the session when the
// client goes away first.
func (h *Handlers) await(w http.ResponseWriter, r *http.Request, c *checkout.Controller, results <-chan checkout.Result) {
	select {
	case res := <-results:
		if res.Err != nil {
			respondCheckoutError(w, res.Err)
			return
		}
		respondJSON(w, http.StatusCreated, res.Order)
	case <-r.Context().Done():
		respondJSON(w, http.StatusAccepted, SubmitResponse{Session: c.Snapshot()})
	}
}

// POST /api/v1/checkout/sessions/{id}/cancel
func (h *Handlers) CancelPayment(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := c.Cancel(); err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// DELETE /api/v1/checkout/sessions/{id}
func (h *Handlers) AbandonSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if err := h.sessions.Abandon(chi.URLParam(r, "id"), p); err != nil {
		respondCheckoutError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
