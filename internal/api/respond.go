package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/ec-checkout/internal/backend"
	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/payment"
)

type ErrorResponse struct {
	Error string         `json:"error"`
	Code  string         `json:"code,omitempty"`
	Kind  checkout.Kind  `json:"kind,omitempty"`
	State checkout.State `json:"state,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondCheckoutError maps controller and backend errors to HTTP statuses.
func respondCheckoutError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var ce *checkout.Error
	if errors.As(err, &ce) {
		resp.Error = ce.Message
		resp.Kind = ce.Kind
		resp.State = ce.State
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s: %v", code, err)
	}
	respondJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, checkout.ErrSessionAbandoned):
		return http.StatusGone, "session_abandoned"
	case errors.Is(err, checkout.ErrSubmitInProgress), errors.Is(err, checkout.ErrAttemptPending):
		return http.StatusConflict, "submit_in_progress"
	case errors.Is(err, checkout.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	case errors.Is(err, payment.ErrAttemptNotFound):
		return http.StatusNotFound, "attempt_not_found"
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized, "backend_unauthorized"
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	}

	kind, ok := checkout.KindOf(err)
	if !ok {
		var be *backend.Error
		if errors.As(err, &be) {
			return http.StatusBadGateway, "backend_error"
		}
		return http.StatusInternalServerError, "internal_error"
	}
	switch kind {
	case checkout.KindValidation:
		return http.StatusUnprocessableEntity, "validation_failed"
	case checkout.KindPayment:
		return http.StatusPaymentRequired, "payment_failed"
	case checkout.KindSubmission:
		return http.StatusBadGateway, "submission_failed"
	case checkout.KindLoad:
		return http.StatusBadGateway, "load_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}
