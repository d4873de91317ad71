package payment

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/example/ec-checkout/internal/domain/checkout"
)

type Config struct {
	KeyID       string
	DisplayName string
	Description string
	ThemeColor  string
}

// Adapter turns a Widget into a single awaited charge.
type Adapter struct {
	widget Widget
	cfg    Config

	mu      sync.Mutex
	pending map[string]string // session id -> attempt id
}

func NewAdapter(widget Widget, cfg Config) *Adapter {
	return &Adapter{
		widget:  widget,
		cfg:     cfg,
		pending: make(map[string]string),
	}
}

// Charge opens the widget and blocks until it resolves or ctx is done.
// Cancelling ctx resolves the attempt as cancelled and closes the widget.
func (a *Adapter) Charge(ctx context.Context, req checkout.ChargeRequest) (checkout.ChargeOutcome, error) {
	if a.widget == nil || a.cfg.KeyID == "" {
		return checkout.ChargeOutcome{}, checkout.ErrGatewayUnavailable
	}

	a.mu.Lock()
	if pendingID, busy := a.pending[req.SessionID]; busy {
		a.mu.Unlock()
		return checkout.ChargeOutcome{}, fmt.Errorf("%w: session %s has attempt %s", checkout.ErrAttemptPending, req.SessionID, pendingID)
	}
	a.pending[req.SessionID] = req.AttemptID
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.pending, req.SessionID)
		a.mu.Unlock()
	}()

	resolved := make(chan checkout.ChargeOutcome, 1)
	var once sync.Once
	resolve := func(o checkout.ChargeOutcome) {
		once.Do(func() { resolved <- o })
	}

	cb := Callbacks{
		OnSuccess: func(paymentID string) {
			resolve(checkout.ChargeOutcome{Status: checkout.AttemptSucceeded, PaymentID: paymentID})
		},
		OnFailure: func(code, description string) {
			resolve(checkout.ChargeOutcome{Status: checkout.AttemptFailed, ReasonCode: code, Description: description})
		},
		OnDismiss: func() {
			resolve(checkout.ChargeOutcome{Status: checkout.AttemptCancelled})
		},
	}

	if err := a.widget.Open(ctx, a.options(req), cb); err != nil {
		return checkout.ChargeOutcome{}, fmt.Errorf("%w: %v", checkout.ErrGatewayUnavailable, err)
	}
	defer a.widget.Close(req.AttemptID)

	log.Printf("[Payment] Attempt %s opened for session %s (%d %s)", req.AttemptID, req.SessionID, req.AmountMinor, req.Currency)

	select {
	case outcome := <-resolved:
		log.Printf("[Payment] Attempt %s resolved %s", req.AttemptID, outcome.Status)
		return outcome, nil
	case <-ctx.Done():
		resolve(checkout.ChargeOutcome{Status: checkout.AttemptCancelled})
		outcome := <-resolved
		log.Printf("[Payment] Attempt %s resolved %s after cancellation", req.AttemptID, outcome.Status)
		return outcome, nil
	}
}

func (a *Adapter) options(req checkout.ChargeRequest) Options {
	return Options{
		AttemptID:   req.AttemptID,
		Key:         a.cfg.KeyID,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Name:        a.cfg.DisplayName,
		Description: a.cfg.Description,
		Prefill: Prefill{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Contact: req.Customer.Phone,
		},
		Theme: Theme{Color: a.cfg.ThemeColor},
		Notes: req.Metadata,
	}
}
