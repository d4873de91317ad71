package order

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentOnline         PaymentMethod = "online"
	PaymentCashOnDelivery PaymentMethod = "cod"
)

// Literals the order API expects in the paymentMethod field.
const (
	literalOnline         = "Online Payment"
	literalCashOnDelivery = "Cash on Delivery"
)

var (
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrInvalidItem          = errors.New("invalid cart item")
)

// ParsePaymentMethod accepts both the short form used by clients and the
// order API literal.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", strings.ToLower(literalOnline):
		return PaymentOnline, nil
	case "cod", strings.ToLower(literalCashOnDelivery):
		return PaymentCashOnDelivery, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
}

// Literal returns the value sent to the order API.
func (m PaymentMethod) Literal() string {
	switch m {
	case PaymentOnline:
		return literalOnline
	case PaymentCashOnDelivery:
		return literalCashOnDelivery
	}
	return string(m)
}

// Item is a cart line captured for one checkout session.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (i Item) Validate() error {
	if i.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidItem)
	}
	if i.Quantity <= 0 {
		return fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidItem, i.ProductID)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: price for %s must not be negative", ErrInvalidItem, i.ProductID)
	}
	return nil
}

// Subtotal is price times quantity in major units.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	ID         string `json:"id,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Validate enforces the fields an order cannot ship without.
func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidAddress, strings.Join(missing, " and "))
	}
	return nil
}

// TotalMinorUnits sums price*quantity exactly and converts to minor units,
// rounding half away from zero.
func TotalMinorUnits(items []Item) int64 {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return sum.Shift(2).Round(0).IntPart()
}

// Payload is what gets submitted to the order API.
type Payload struct {
	UserID        string        `json:"userId"`
	Address       Address       `json:"address"`
	Items         []Item        `json:"items"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Amount        int64         `json:"amount"`
	PaymentID     string        `json:"paymentId,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p Payload) Clone() Payload {
	p.Items = slices.Clone(p.Items)
	return p
}

// Order is the record created by the backend. It is never modified after
// creation.
type Order struct {
	ID        string    `json:"id"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}
