package checkout

import (
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
)

const (
	EventCheckoutReady         = "CheckoutReady"
	EventCheckoutLoadFailed    = "CheckoutLoadFailed"
	EventPaymentRequested      = "PaymentRequested"
	EventPaymentSucceeded      = "PaymentSucceeded"
	EventPaymentFailed         = "PaymentFailed"
	EventPaymentCancelled      = "PaymentCancelled"
	EventPaymentDiscarded      = "PaymentDiscarded"
	EventOrderSubmissionFailed = "OrderSubmissionFailed"
	EventCheckoutCompleted     = "CheckoutCompleted"
	EventCheckoutAbandoned     = "CheckoutAbandoned"
)

type CheckoutReady struct {
	UserID       string `json:"user_id"`
	ItemCount    int    `json:"item_count"`
	Total        int64  `json:"total"`
	Currency     string `json:"currency"`
	AddressCount int    `json:"address_count"`
}

type CheckoutLoadFailed struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type PaymentRequested struct {
	AttemptID string `json:"attempt_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// PaymentResolved is recorded for succeeded, failed, cancelled and
// discarded attempts.
type PaymentResolved struct {
	AttemptID   string        `json:"attempt_id"`
	Status      AttemptStatus `json:"status"`
	PaymentID   string        `json:"payment_id,omitempty"`
	ReasonCode  string        `json:"reason_code,omitempty"`
	Description string        `json:"description,omitempty"`
}

type OrderSubmissionFailed struct {
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	Amount        int64               `json:"amount"`
	Reason        string              `json:"reason"`
}

// CheckoutCompleted carries what the confirmation notifier needs.
type CheckoutCompleted struct {
	OrderID       string              `json:"order_id"`
	UserID        string              `json:"user_id"`
	Email         string              `json:"email"`
	Name          string              `json:"name"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	PaymentID     string              `json:"payment_id,omitempty"`
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency"`
	Items         []order.Item        `json:"items"`
	Address       order.Address       `json:"address"`
	PlacedAt      time.Time           `json:"placed_at"`
}

type CheckoutAbandoned struct {
	State State `json:"state"`
}
