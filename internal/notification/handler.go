package notification

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/store"
)

// Sender is satisfied by *email.Service
type Sender interface {
	SendOrderConfirmation(to string, c email.Confirmation) error
}

// Handler sends order confirmations for completed checkouts
type Handler struct {
	sender Sender
}

// NewHandler creates a new notification handler
func NewHandler(sender Sender) *Handler {
	return &Handler{sender: sender}
}

// HandleEvent processes a journal entry from Kafka. Entries that cannot be
// decoded are logged and skipped so they do not block the partition.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var entry store.Entry
	if err := json.Unmarshal(value, &entry); err != nil {
		log.Printf("[Notifier] Failed to unmarshal entry: %v", err)
		return nil
	}

	// Only completed checkouts get a confirmation
	if entry.EventType != checkout.EventCheckoutCompleted {
		return nil
	}
	return h.handleCheckoutCompleted(entry)
}

func (h *Handler) handleCheckoutCompleted(entry store.Entry) error {
	var e checkout.CheckoutCompleted
	if err := json.Unmarshal(entry.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal CheckoutCompleted for session %s: %v", entry.SessionID, err)
		return nil
	}

	log.Printf("[Notifier] Processing CheckoutCompleted for order %s, user %s", e.OrderID, e.UserID)

	if e.Email == "" {
		log.Printf("[Notifier] No email address for order %s, skipping", e.OrderID)
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	c := email.Confirmation{
		OrderID:       e.OrderID,
		CustomerName:  e.Name,
		PaymentMethod: e.PaymentMethod.Literal(),
		PaymentID:     e.PaymentID,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Items:         items,
		ShipTo:        formatAddress(e.Address),
	}
	// Returning the error leaves the offset uncommitted so the entry is redelivered
	if err := h.sender.SendOrderConfirmation(e.Email, c); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.Email, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", e.Email, e.OrderID)
	return nil
}

func formatAddress(a order.Address) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State + " " + a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
