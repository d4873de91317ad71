package backend

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

type cartItemDTO struct {
	ProductID string          `json:"productId"`
	ID        string          `json:"_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (d cartItemDTO) toItem() order.Item {
	return order.Item{
		ProductID: firstNonEmpty(d.ProductID, d.ID),
		Name:      d.Name,
		Image:     d.Image,
		Price:     d.Price,
		Quantity:  d.Quantity,
	}
}

// addressDTO accepts the field spellings used by the address book.
type addressDTO struct {
	MongoID      string `json:"_id"`
	ID           string `json:"id"`
	Line1        string `json:"line1"`
	AddressLine1 string `json:"addressLine1"`
	Street       string `json:"street"`
	Line2        string `json:"line2"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Pincode      string `json:"pincode"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
}

func (d addressDTO) toAddress() order.Address {
	return order.Address{
		ID:         firstNonEmpty(d.MongoID, d.ID),
		Line1:      firstNonEmpty(d.Line1, d.AddressLine1, d.Street),
		Line2:      firstNonEmpty(d.Line2, d.AddressLine2),
		City:       d.City,
		State:      d.State,
		PostalCode: firstNonEmpty(d.PostalCode, d.Pincode, d.ZipCode),
		Country:    d.Country,
	}
}

// addressBody is the exact address shape the order API expects.
type addressBody struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderRequest struct {
	UserID        string       `json:"userId"`
	Address       addressBody  `json:"address"`
	Items         []order.Item `json:"items"`
	PaymentMethod string       `json:"paymentMethod"`
	Amount        int64        `json:"amount"`
	PaymentID     string       `json:"paymentId,omitempty"`
}

func newOrderRequest(p order.Payload) orderRequest {
	items := make([]order.Item, len(p.Items))
	copy(items, p.Items)
	return orderRequest{
		UserID: p.UserID,
		Address: addressBody{
			Line1:      p.Address.Line1,
			Line2:      p.Address.Line2,
			City:       p.Address.City,
			State:      p.Address.State,
			PostalCode: p.Address.PostalCode,
			Country:    p.Address.Country,
		},
		Items:         items,
		PaymentMethod: p.PaymentMethod.Literal(),
		Amount:        p.Amount,
		PaymentID:     p.PaymentID,
	}
}

type orderRecordDTO struct {
	MongoID       string          `json:"_id"`
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	Items         []cartItemDTO   `json:"items"`
	Products      []cartItemDTO   `json:"products"`
	Amount        decimal.Decimal `json:"amount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentID     string          `json:"paymentId"`
	Status        string          `json:"status"`
	CreatedAt     looseTime       `json:"createdAt"`
	Order         *orderRecordDTO `json:"order"`
}

// looseTime accepts RFC 3339, a few common backend layouts and epoch
// milliseconds. Anything else decodes to the zero time instead of failing.
type looseTime struct {
	time.Time
}

var looseTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *looseTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var ms int64
		if json.Unmarshal(data, &ms) == nil && ms > 0 {
			t.Time = time.UnixMilli(ms).UTC()
		}
		return nil
	}
	for _, layout := range looseTimeLayouts {
		if parsed, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// orderAckDTO is the part of an order-creation response needed to confirm
// the order. Only identifiers and the creation time are read.
type orderAckDTO struct {
	MongoID   string       `json:"_id"`
	ID        string       `json:"id"`
	OrderID   string       `json:"orderId"`
	CreatedAt looseTime    `json:"createdAt"`
	Order     *orderAckDTO `json:"order"`
}

func (d orderAckDTO) id() string {
	return firstNonEmpty(d.MongoID, d.ID, d.OrderID)
}

func (d orderRecordDTO) id() string {
	return firstNonEmpty(d.MongoID, d.ID, d.OrderID)
}

// OrderRecord is an order as listed in the shopper's history.
type OrderRecord struct {
	ID            string          `json:"id"`
	Items         []order.Item    `json:"items"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentID     string          `json:"paymentId,omitempty"`
	Status        string          `json:"status,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (d orderRecordDTO) toRecord() OrderRecord {
	src := d.Items
	if len(src) == 0 {
		src = d.Products
	}
	items := make([]order.Item, 0, len(src))
	for _, it := range src {
		items = append(items, it.toItem())
	}
	amount := d.Amount
	if amount.IsZero() {
		amount = d.TotalAmount
	}
	return OrderRecord{
		ID:            d.id(),
		Items:         items,
		Amount:        amount,
		PaymentMethod: d.PaymentMethod,
		PaymentID:     d.PaymentID,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt.Time,
	}
}
