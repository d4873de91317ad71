package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type PaymentSuccessRequest struct {
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type PaymentFailureRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// POST /api/v1/payments/{attemptID}/success
func (h *Handlers) PaymentSucceeded(w http.ResponseWriter, r *http.Request) {
	var req PaymentSuccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentID == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_id", "paymentId is required")
		return
	}
	if err := h.payments.Succeed(chi.URLParam(r, "attemptID"), req.PaymentID, req.Signature); err != nil {
		respondCheckoutError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/payments/{attemptID}/failure
func (h *Handlers) PaymentFailed(w http.ResponseWriter, r *http.Request) {
	var req PaymentFailureRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.payments.Fail(chi.URLParam(r, "attemptID"), req.Code, req.Description); err != nil {
		respondCheckoutError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/payments/{attemptID}/dismiss
func (h *Handlers) PaymentDismissed(w http.ResponseWriter, r *http.Request) {
	if err := h.payments.Dismiss(chi.URLParam(r, "attemptID")); err != nil {
		respondCheckoutError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
