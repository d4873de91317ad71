package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/google/uuid"
)

const DefaultCurrency = "INR"

// Deps are the collaborators of a checkout session. Users, Orders, Journal
// and Metrics are optional.
type Deps struct {
	Carts     CartSource
	Addresses AddressSource
	Gateway   PaymentGateway
	Submitter OrderSubmitter
	Users     UserResolver
	Orders    store.OrderCache
	Journal   store.Journal
	Metrics   Recorder
	Currency  string
}

// Result is delivered once per started submission.
type Result struct {
	Order *order.Order
	Err   error
}

// Controller owns the state of one checkout session.
type Controller struct {
	id   string
	deps Deps

	mu              sync.Mutex
	principal       Principal
	state           State
	items           []order.Item
	total           int64
	addresses       []order.Address
	address         *order.Address
	method          order.PaymentMethod
	attempt         *PaymentAttempt
	cancelAttempt   context.CancelFunc
	cancelRequested bool
	placed          *order.Order
	lastErr         *Error
	abandoned       bool
	updatedAt       time.Time
}

func NewController(id string, p Principal, deps Deps) *Controller {
	if deps.Metrics == nil {
		deps.Metrics = noopRecorder{}
	}
	if deps.Currency == "" {
		deps.Currency = DefaultCurrency
	}
	return &Controller{
		id:        id,
		deps:      deps,
		principal: p,
		state:     StateIdle,
		updatedAt: time.Now(),
	}
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Principal() Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

// Initialize loads cart and addresses concurrently. Legal from Idle and Failed.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(StateLoading); err != nil {
		c.mu.Unlock()
		return err
	}
	c.transitionLocked(StateLoading)
	c.lastErr = nil
	p := c.principal
	c.mu.Unlock()

	if p.UserID == "" && c.deps.Users != nil {
		userID, err := c.deps.Users.ResolveUserID(ctx, p)
		if err != nil {
			return c.loadFailed(ctx, fmt.Errorf("resolve user: %w", err))
		}
		p.UserID = userID
		c.mu.Lock()
		c.principal.UserID = userID
		c.mu.Unlock()
	}

	var (
		wg        sync.WaitGroup
		items     []order.Item
		addresses []order.Address
		cartErr   error
		addrErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		items, cartErr = c.deps.Carts.LoadCart(ctx, p)
	}()
	go func() {
		defer wg.Done()
		addresses, addrErr = c.deps.Addresses.LoadAddresses(ctx, p)
	}()
	wg.Wait()

	if cartErr != nil {
		cartErr = fmt.Errorf("load cart: %w", cartErr)
	}
	if addrErr != nil {
		addrErr = fmt.Errorf("load addresses: %w", addrErr)
	}
	if err := errors.Join(cartErr, addrErr); err != nil {
		return c.loadFailed(ctx, err)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return c.loadFailed(ctx, err)
		}
	}

	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return newError(KindLoad, StateLoading, ErrSessionAbandoned)
	}
	c.items = slices.Clone(items)
	c.total = order.TotalMinorUnits(c.items)
	c.addresses = slices.Clone(addresses)
	c.address = nil
	if len(c.addresses) == 1 {
		addr := c.addresses[0]
		c.address = &addr
	}
	c.transitionLocked(StateReady)
	ready := CheckoutReady{
		UserID:       c.principal.UserID,
		ItemCount:    len(c.items),
		Total:        c.total,
		Currency:     c.deps.Currency,
		AddressCount: len(c.addresses),
	}
	c.mu.Unlock()

	c.record(ctx, EventCheckoutReady, ready)
	return nil
}

func (c *Controller) loadFailed(ctx context.Context, err error) error {
	c.mu.Lock()
	ce := newError(KindLoad, StateLoading, err)
	if !c.abandoned {
		c.transitionLocked(StateFailed)
		c.lastErr = ce
	}
	userID := c.principal.UserID
	c.mu.Unlock()

	log.Printf("[Checkout] Session %s failed to load: %v", c.id, err)
	c.record(ctx, EventCheckoutLoadFailed, CheckoutLoadFailed{UserID: userID, Reason: err.Error()})
	return ce
}

func (c *Controller) SelectAddress(addr order.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return err
	}
	c.address = &addr
	c.lastErr = nil
	c.updatedAt = time.Now()
	return nil
}

// SelectAddressIndex selects one of the loaded addresses.
func (c *Controller) SelectAddressIndex(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return err
	}
	if i < 0 || i >= len(c.addresses) {
		return newError(KindValidation, c.state, fmt.Errorf("%w: %d", ErrAddressIndex, i))
	}
	addr := c.addresses[i]
	c.address = &addr
	c.lastErr = nil
	c.updatedAt = time.Now()
	return nil
}

func (c *Controller) SelectPaymentMethod(m order.PaymentMethod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReadyLocked(); err != nil {
		return err
	}
	if m != order.PaymentOnline && m != order.PaymentCashOnDelivery {
		return newError(KindValidation, c.state, fmt.Errorf("%w: %q", order.ErrUnknownPaymentMethod, m))
	}
	c.method = m
	c.lastErr = nil
	c.updatedAt = time.Now()
	return nil
}

// Submit starts a submission and waits for its result.
func (c *Controller) Submit(ctx context.Context) (*order.Order, error) {
	results, err := c.Start(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-results:
		return res.Order, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start validates the session synchronously and then runs the payment and
// submission in the background. Validation failures perform no I/O. The
// returned channel receives exactly one Result.
func (c *Controller) Start(ctx context.Context) (<-chan Result, error) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return nil, newError(KindValidation, c.state, ErrSessionAbandoned)
	}
	if c.state.InFlight() {
		kind := KindSubmission
		if c.state == StateAwaitingPayment {
			kind = KindPayment
		}
		err := newError(kind, c.state, ErrSubmitInProgress)
		c.mu.Unlock()
		return nil, err
	}
	if err := c.requireReadyLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.validateLocked(); err != nil {
		c.lastErr = err
		c.updatedAt = time.Now()
		c.mu.Unlock()
		return nil, err
	}
	if c.method == order.PaymentOnline && c.deps.Gateway == nil {
		err := newError(KindPayment, c.state, ErrGatewayUnavailable)
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}

	items := slices.Clone(c.items)
	payload := order.Payload{
		UserID:        c.principal.UserID,
		Address:       *c.address,
		Items:         items,
		PaymentMethod: c.method,
		Amount:        order.TotalMinorUnits(items),
	}
	p := c.principal
	c.lastErr = nil
	c.cancelRequested = false
	results := make(chan Result, 1)

	if c.method == order.PaymentCashOnDelivery {
		c.attempt = nil
		c.transitionLocked(StateSubmitting)
		c.mu.Unlock()

		go func() {
			results <- c.submit(ctx, p, payload, nil)
		}()
		return results, nil
	}

	attempt := &PaymentAttempt{
		ID:          uuid.New().String(),
		AmountMinor: payload.Amount,
		Currency:    c.deps.Currency,
		Status:      AttemptPending,
		CreatedAt:   time.Now(),
	}
	chargeCtx, cancel := context.WithCancel(ctx)
	c.attempt = attempt
	c.cancelAttempt = cancel
	c.transitionLocked(StateAwaitingPayment)
	req := ChargeRequest{
		SessionID:   c.id,
		AttemptID:   attempt.ID,
		AmountMinor: attempt.AmountMinor,
		Currency:    attempt.Currency,
		Customer:    Customer{Name: p.Name, Email: p.Email, Phone: p.Phone},
		Metadata: map[string]string{
			"session_id": c.id,
			"user_id":    p.UserID,
		},
	}
	c.mu.Unlock()

	c.record(ctx, EventPaymentRequested, PaymentRequested{
		AttemptID: attempt.ID,
		Amount:    attempt.AmountMinor,
		Currency:  attempt.Currency,
	})

	go func() {
		defer cancel()
		results <- c.pay(ctx, chargeCtx, p, attempt, req, payload)
	}()
	return results, nil
}

func (c *Controller) validateLocked() *Error {
	if len(c.items) == 0 {
		return newError(KindValidation, c.state, ErrEmptyCart)
	}
	if c.address == nil {
		return newError(KindValidation, c.state, ErrAddressRequired)
	}
	if err := c.address.Validate(); err != nil {
		return newError(KindValidation, c.state, err)
	}
	if c.method == "" {
		return newError(KindValidation, c.state, ErrPaymentMethodRequired)
	}
	return nil
}

func (c *Controller) pay(ctx, chargeCtx context.Context, p Principal, attempt *PaymentAttempt, req ChargeRequest, payload order.Payload) Result {
	outcome, chargeErr := c.deps.Gateway.Charge(chargeCtx, req)

	c.mu.Lock()
	c.cancelAttempt = nil

	if c.abandoned || c.cancelRequested {
		abandoned := c.abandoned
		attempt.Status = AttemptCancelled
		var ce *Error
		if abandoned {
			ce = newError(KindPayment, StateAwaitingPayment, ErrSessionAbandoned)
		} else {
			ce = newError(KindPayment, StateAwaitingPayment, ErrPaymentCancelled)
			c.transitionLocked(StateReady)
			c.lastErr = ce
		}
		c.deps.Metrics.PaymentOutcome(string(AttemptCancelled))
		c.mu.Unlock()

		if chargeErr == nil && outcome.Status == AttemptSucceeded {
			log.Printf("[Checkout] Session %s discarding payment %s for attempt %s after cancellation", c.id, outcome.PaymentID, attempt.ID)
			c.record(ctx, EventPaymentDiscarded, PaymentResolved{
				AttemptID: attempt.ID,
				Status:    AttemptSucceeded,
				PaymentID: outcome.PaymentID,
			})
		} else {
			c.record(ctx, EventPaymentCancelled, PaymentResolved{AttemptID: attempt.ID, Status: AttemptCancelled})
		}
		return Result{Err: ce}
	}

	if chargeErr == nil && outcome.Status == AttemptSucceeded && outcome.PaymentID == "" {
		chargeErr = errors.New("gateway returned no payment id")
	}
	if chargeErr != nil {
		attempt.Status = AttemptFailed
		attempt.Description = chargeErr.Error()
		return c.paymentFailedLocked(ctx, attempt, newError(KindPayment, StateAwaitingPayment, chargeErr))
	}

	switch outcome.Status {
	case AttemptSucceeded:
		attempt.Status = AttemptSucceeded
		attempt.PaymentID = outcome.PaymentID
		c.deps.Metrics.PaymentOutcome(string(AttemptSucceeded))
		c.transitionLocked(StateSubmitting)
		c.mu.Unlock()

		c.record(ctx, EventPaymentSucceeded, PaymentResolved{
			AttemptID: attempt.ID,
			Status:    AttemptSucceeded,
			PaymentID: outcome.PaymentID,
		})
		payload.PaymentID = outcome.PaymentID
		return c.submit(ctx, p, payload, attempt)

	case AttemptCancelled:
		attempt.Status = AttemptCancelled
		return c.paymentFailedLocked(ctx, attempt, newError(KindPayment, StateAwaitingPayment, ErrPaymentCancelled))

	default:
		attempt.Status = AttemptFailed
		attempt.ReasonCode = outcome.ReasonCode
		attempt.Description = outcome.Description
		ce := &Error{
			Kind:    KindPayment,
			State:   StateAwaitingPayment,
			Message: paymentFailureMessage(outcome),
			Err:     fmt.Errorf("%w: %s", ErrPaymentFailed, outcome.ReasonCode),
		}
		return c.paymentFailedLocked(ctx, attempt, ce)
	}
}

// paymentFailedLocked returns the session to Ready. Called with c.mu held;
// releases it.
func (c *Controller) paymentFailedLocked(ctx context.Context, attempt *PaymentAttempt, ce *Error) Result {
	c.transitionLocked(StateReady)
	c.lastErr = ce
	status := attempt.Status
	c.deps.Metrics.PaymentOutcome(string(status))
	c.mu.Unlock()

	eventType := EventPaymentFailed
	if status == AttemptCancelled {
		eventType = EventPaymentCancelled
	}
	c.record(ctx, eventType, PaymentResolved{
		AttemptID:   attempt.ID,
		Status:      status,
		ReasonCode:  attempt.ReasonCode,
		Description: attempt.Description,
	})
	return Result{Err: ce}
}

func paymentFailureMessage(outcome ChargeOutcome) string {
	if outcome.Description != "" {
		return fmt.Sprintf("Payment failed: %s", outcome.Description)
	}
	if outcome.ReasonCode != "" {
		return fmt.Sprintf("Payment failed: %s", outcome.ReasonCode)
	}
	return "Payment failed"
}

func (c *Controller) submit(ctx context.Context, p Principal, payload order.Payload, attempt *PaymentAttempt) Result {
	method := string(payload.PaymentMethod)

	if attempt != nil && (payload.PaymentID == "" || attempt.AmountMinor != payload.Amount) {
		return c.submissionFailed(ctx, payload, newError(KindSubmission, StateSubmitting, ErrAmountMismatch))
	}

	placed, err := c.deps.Submitter.Submit(ctx, p, payload.Clone())
	if err == nil && placed == nil {
		err = errors.New("order API returned no order")
	}
	if err != nil {
		return c.submissionFailed(ctx, payload, newError(KindSubmission, StateSubmitting, err))
	}

	c.mu.Lock()
	c.placed = placed
	c.transitionLocked(StateCompleted)
	c.deps.Metrics.Submission(method, "success")
	c.mu.Unlock()

	log.Printf("[Checkout] Session %s placed order %s (%s, %d)", c.id, placed.ID, method, payload.Amount)

	if c.deps.Orders != nil {
		if err := c.deps.Orders.SetLast(context.WithoutCancel(ctx), p.UserID, placed); err != nil {
			log.Printf("[Checkout] Failed to cache order %s: %v", placed.ID, err)
		}
	}
	placedAt := placed.CreatedAt
	if placedAt.IsZero() {
		placedAt = time.Now()
	}
	c.record(ctx, EventCheckoutCompleted, CheckoutCompleted{
		OrderID:       placed.ID,
		UserID:        p.UserID,
		Email:         p.Email,
		Name:          p.Name,
		PaymentMethod: payload.PaymentMethod,
		PaymentID:     payload.PaymentID,
		Amount:        payload.Amount,
		Currency:      c.deps.Currency,
		Items:         payload.Items,
		Address:       payload.Address,
		PlacedAt:      placedAt,
	})
	return Result{Order: placed}
}

func (c *Controller) submissionFailed(ctx context.Context, payload order.Payload, ce *Error) Result {
	c.mu.Lock()
	c.transitionLocked(StateReady)
	c.lastErr = ce
	c.deps.Metrics.Submission(string(payload.PaymentMethod), "failure")
	c.mu.Unlock()

	log.Printf("[Checkout] Session %s order submission failed: %v", c.id, ce.Err)
	c.record(ctx, EventOrderSubmissionFailed, OrderSubmissionFailed{
		PaymentMethod: payload.PaymentMethod,
		Amount:        payload.Amount,
		Reason:        ce.Message,
	})
	return Result{Err: ce}
}

// Cancel aborts the pending payment attempt. No submission is issued for it
// afterwards, even if the gateway resolves successfully later.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state != StateAwaitingPayment {
		err := newError(KindPayment, c.state, fmt.Errorf("%w: no pending payment to cancel", ErrIllegalTransition))
		c.mu.Unlock()
		return err
	}
	c.cancelRequested = true
	cancel := c.cancelAttempt
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Abandon ends the session. A pending attempt is cancelled and any late
// gateway resolution is discarded. A submission already in progress runs to
// completion.
func (c *Controller) Abandon() {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return
	}
	c.abandoned = true
	state := c.state
	cancel := c.cancelAttempt
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.record(context.Background(), EventCheckoutAbandoned, CheckoutAbandoned{State: state})
}

// Abandoned reports whether Abandon has been called.
func (c *Controller) Abandoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandoned
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:     c.id,
		UserID:        c.principal.UserID,
		State:         c.state,
		Items:         slices.Clone(c.items),
		Total:         c.total,
		Currency:      c.deps.Currency,
		Addresses:     slices.Clone(c.addresses),
		PaymentMethod: c.method,
		Order:         c.placed,
		Error:         c.lastErr.info(),
		UpdatedAt:     c.updatedAt,
	}
	if c.address != nil {
		addr := *c.address
		snap.Address = &addr
	}
	if c.attempt != nil {
		attempt := *c.attempt
		snap.Attempt = &attempt
	}
	return snap
}

func (c *Controller) requireReadyLocked() *Error {
	if c.state != StateReady {
		return newError(KindValidation, c.state, fmt.Errorf("%w: session is %s", ErrIllegalTransition, c.state))
	}
	return nil
}

func (c *Controller) guardLocked(target State) *Error {
	if c.abandoned {
		return newError(KindValidation, c.state, ErrSessionAbandoned)
	}
	if !c.state.CanTransitionTo(target) {
		return newError(KindValidation, c.state, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, c.state, target))
	}
	return nil
}

func (c *Controller) transitionLocked(to State) {
	from := c.state
	if !from.CanTransitionTo(to) {
		log.Printf("[Checkout] Session %s unexpected transition %s -> %s", c.id, from, to)
	}
	c.state = to
	c.updatedAt = time.Now()
	c.deps.Metrics.Transition(string(from), string(to))
}

// record appends to the journal. Journal failures never fail the checkout.
func (c *Controller) record(ctx context.Context, eventType string, data any) {
	if c.deps.Journal == nil {
		return
	}
	if _, err := c.deps.Journal.Append(context.WithoutCancel(ctx), c.id, eventType, data); err != nil {
		log.Printf("[Checkout] Failed to record %s for session %s: %v", eventType, c.id, err)
	}
}
