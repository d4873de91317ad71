package api

import (
	"context"
	"net/http"
	"time"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/backend"
	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/payment"
)

// PaymentCallbacks is the browser-facing side of the hosted widget.
type PaymentCallbacks interface {
	Options(ctx context.Context, attemptID string) (payment.Options, error)
	Succeed(attemptID, paymentID, signature string) error
	Fail(attemptID, code, description string) error
	Dismiss(attemptID string) error
}

type OrderHistory interface {
	ListOrders(ctx context.Context, p checkout.Principal) ([]backend.OrderRecord, error)
}

type Deps struct {
	Sessions *checkout.Manager
	Payments PaymentCallbacks
	History  OrderHistory
	Users    checkout.UserResolver
	Orders   store.OrderCache
	// OptionsWait bounds how long submit waits for the widget to open.
	OptionsWait time.Duration
}

type Handlers struct {
	sessions    *checkout.Manager
	payments    PaymentCallbacks
	history     OrderHistory
	users       checkout.UserResolver
	orders      store.OrderCache
	optionsWait time.Duration
}

func NewHandlers(deps Deps) *Handlers {
	wait := deps.OptionsWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Handlers{
		sessions:    deps.Sessions,
		payments:    deps.Payments,
		history:     deps.History,
		users:       deps.Users,
		orders:      deps.Orders,
		optionsWait: wait,
	}
}

func principal(r *http.Request) (checkout.Principal, bool) {
	return middleware.PrincipalFromContext(r.Context())
}

// userID returns the backend user id of p, resolving it from the external id
// when the token did not carry one.
func (h *Handlers) userID(ctx context.Context, p checkout.Principal) (string, error) {
	if p.UserID != "" || h.users == nil {
		return p.UserID, nil
	}
	return h.users.ResolveUserID(ctx, p)
}
