package checkout

import (
	"context"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
)

// Principal is the authenticated shopper a session belongs to. Token is the
// bearer credential forwarded to the backend.
type Principal struct {
	Subject    string
	UserID     string
	ExternalID string
	Email      string
	Name       string
	Phone      string
	Token      string
}

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
	AttemptCancelled AttemptStatus = "cancelled"
)

// Customer is the prefill shown by the payment widget.
type Customer struct {
	Name  string
	Email string
	Phone string
}

type ChargeRequest struct {
	SessionID   string
	AttemptID   string
	AmountMinor int64
	Currency    string
	Customer    Customer
	Metadata    map[string]string
}

// ChargeOutcome is the single resolution of a charge.
type ChargeOutcome struct {
	Status      AttemptStatus
	PaymentID   string
	ReasonCode  string
	Description string
}

// PaymentAttempt correlates a session with one gateway invocation.
type PaymentAttempt struct {
	ID          string        `json:"id"`
	AmountMinor int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Status      AttemptStatus `json:"status"`
	PaymentID   string        `json:"paymentId,omitempty"`
	ReasonCode  string        `json:"reasonCode,omitempty"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	SessionID     string              `json:"sessionId"`
	UserID        string              `json:"userId"`
	State         State               `json:"state"`
	Items         []order.Item        `json:"items"`
	Total         int64               `json:"total"`
	Currency      string              `json:"currency"`
	Addresses     []order.Address     `json:"addresses"`
	Address       *order.Address      `json:"address,omitempty"`
	PaymentMethod order.PaymentMethod `json:"paymentMethod,omitempty"`
	Attempt       *PaymentAttempt     `json:"attempt,omitempty"`
	Order         *order.Order        `json:"order,omitempty"`
	Error         *ErrorInfo          `json:"error,omitempty"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type CartSource interface {
	LoadCart(ctx context.Context, p Principal) ([]order.Item, error)
}

type AddressSource interface {
	LoadAddresses(ctx context.Context, p Principal) ([]order.Address, error)
}

// PaymentGateway resolves each Charge exactly once. An error means the
// charge never reached the shopper (gateway missing, attempt already pending).
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error)
}

type OrderSubmitter interface {
	Submit(ctx context.Context, p Principal, payload order.Payload) (*order.Order, error)
}

// UserResolver maps an identity-provider id to the backend user id.
type UserResolver interface {
	ResolveUserID(ctx context.Context, p Principal) (string, error)
}

// Recorder receives checkout metrics.
type Recorder interface {
	Transition(from, to string)
	PaymentOutcome(status string)
	Submission(method, result string)
}

type noopRecorder struct{}

func (noopRecorder) Transition(string, string) {}
func (noopRecorder) PaymentOutcome(string)     {}
func (noopRecorder) Submission(string, string) {}

// StaticCart serves a fixed item list, used for buy-now sessions.
type StaticCart []order.Item

func (s StaticCart) LoadCart(context.Context, Principal) ([]order.Item, error) {
	out := make([]order.Item, len(s))
	copy(out, s)
	return out, nil
}
