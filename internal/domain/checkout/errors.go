package checkout

import (
	"errors"
	"fmt"
)

// Kind classifies checkout failures.
type Kind string

const (
	KindValidation Kind = "validation"
	KindLoad       Kind = "load"
	KindPayment    Kind = "payment"
	KindSubmission Kind = "submission"
)

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrAddressRequired       = errors.New("shipping address is required")
	ErrAddressIndex          = errors.New("address index out of range")
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrIllegalTransition     = errors.New("illegal transition of checkout state")
	ErrSubmitInProgress      = errors.New("order submission already in progress")
	ErrPaymentCancelled      = errors.New("payment cancelled")
	ErrPaymentFailed         = errors.New("payment failed")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrAttemptPending        = errors.New("payment attempt already pending")
	ErrAmountMismatch        = errors.New("paid amount does not match order amount")
	ErrSessionNotFound       = errors.New("checkout session not found")
	ErrSessionAbandoned      = errors.New("checkout session abandoned")
)

// Error is the single error type surfaced by the controller. State is the
// state the session was in when the failure happened.
type Error struct {
	Kind    Kind
	State   State
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Message: err.Error(), Err: err}
}

// KindOf returns the kind of a checkout error, if err is one.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// ErrorInfo is the error as exposed on a snapshot.
type ErrorInfo struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	State   State  `json:"state"`
}

func (e *Error) info() *ErrorInfo {
	if e == nil {
		return nil
	}
	return &ErrorInfo{Kind: e.Kind, Message: e.Message, State: e.State}
}
