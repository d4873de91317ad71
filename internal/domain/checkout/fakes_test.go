package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

// callLog records the order in which collaborators were invoked.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type fakeCart struct {
	mu    sync.Mutex
	items []order.Item
	err   error
	calls int
	hook  func(ctx context.Context) error
}

func (f *fakeCart) LoadCart(ctx context.Context, _ Principal) ([]order.Item, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	items, err := f.items, f.err
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return items, err
}

type fakeAddresses struct {
	mu        sync.Mutex
	addresses []order.Address
	err       error
	calls     int
	hook      func()
}

func (f *fakeAddresses) LoadAddresses(_ context.Context, _ Principal) ([]order.Address, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.addresses, f.err
}

type fakeGateway struct {
	mu       sync.Mutex
	log      *callLog
	requests []ChargeRequest
	outcome  ChargeOutcome
	err      error
	onCharge func(ctx context.Context, req ChargeRequest) (ChargeOutcome, error)
}

func (f *fakeGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeOutcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	onCharge := f.onCharge
	f.mu.Unlock()
	if f.log != nil {
		f.log.add("charge")
	}
	if onCharge != nil {
		return onCharge(ctx, req)
	}
	return f.outcome, f.err
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSubmitter struct {
	mu       sync.Mutex
	log      *callLog
	payloads []order.Payload
	errs     []error
}

func (f *fakeSubmitter) Submit(_ context.Context, _ Principal, payload order.Payload) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.log != nil {
		f.log.add("submit")
	}
	f.payloads = append(f.payloads, payload)
	if n := len(f.payloads) - 1; n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return &order.Order{
		ID:        fmt.Sprintf("order-%d", len(f.payloads)),
		Payload:   payload,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeSubmitter) calls() []order.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]order.Payload, len(f.payloads))
	copy(out, f.payloads)
	return out
}

type fakeResolver struct {
	userID string
	err    error
}

func (f fakeResolver) ResolveUserID(context.Context, Principal) (string, error) {
	return f.userID, f.err
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	payments    []string
	submissions []string
}

func (r *recordingMetrics) Transition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *recordingMetrics) PaymentOutcome(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, status)
}

func (r *recordingMetrics) Submission(method, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, method+":"+result)
}

func cartItem(id, price string, qty int) order.Item {
	return order.Item{ProductID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), Quantity: qty}
}

func validAddress() order.Address {
	return order.Address{
		ID:         "addr-1",
		Line1:      "12 MG Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
	}
}

func testPrincipal() Principal {
	return Principal{
		Subject: "sub-1",
		UserID:  "user-1",
		Email:   "asha@example.com",
		Name:    "Asha",
		Phone:   "9999999999",
		Token:   "token",
	}
}
