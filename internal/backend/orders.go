package backend

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/domain/order"
)

// BuyNowOrdersPath receives unit prices chosen on the client. The backend
// behind it is expected to re-price by product id.
const (
	CartOrdersPath   = "/api/users/orders"
	BuyNowOrdersPath = "/api/users/buynoworder"
)

// OrderSubmitter posts orders to one order-creation endpoint. Each call is
// a single attempt.
type OrderSubmitter struct {
	client *Client
	path   string
}

func NewOrderSubmitter(client *Client, path string) *OrderSubmitter {
	return &OrderSubmitter{client: client, path: path}
}

// Submit treats any 2xx as a placed order. The order already exists in the
// backend at that point, so an unreadable body never turns into a failure.
func (s *OrderSubmitter) Submit(ctx context.Context, p checkout.Principal, payload order.Payload) (*order.Order, error) {
	placed := &order.Order{Payload: payload.Clone()}
	err := s.client.do(ctx, "failed to save order", http.MethodPost, s.path, p.Token, newOrderRequest(payload), func(body []byte) error {
		var dto orderAckDTO
		if err := json.Unmarshal(body, &dto); err != nil {
			log.Printf("[Backend] Order accepted by %s but response is unreadable: %v", s.path, err)
			return nil
		}
		if dto.id() == "" && dto.Order != nil {
			dto = *dto.Order
		}
		if dto.id() == "" {
			log.Printf("[Backend] Order accepted by %s without an order id", s.path)
		}
		placed.ID = dto.id()
		placed.CreatedAt = dto.CreatedAt.Time
		return nil
	})
	if err != nil {
		return nil, err
	}
	if placed.CreatedAt.IsZero() {
		placed.CreatedAt = time.Now().UTC()
	}
	return placed, nil
}

// ListOrders returns the shopper's order history.
func (c *Client) ListOrders(ctx context.Context, p checkout.Principal) ([]OrderRecord, error) {
	if p.UserID == "" {
		return nil, &Error{Op: "failed to fetch orders", Err: ErrUserIDRequired}
	}
	var records []OrderRecord
	err := c.do(ctx, "failed to fetch orders", http.MethodGet, "/api/users/orders/"+url.PathEscape(p.UserID), p.Token, nil, func(body []byte) error {
		dtos, err := decodeList[orderRecordDTO](body, "orders")
		if err != nil {
			return err
		}
		records = make([]OrderRecord, 0, len(dtos))
		for _, d := range dtos {
			records = append(records, d.toRecord())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
