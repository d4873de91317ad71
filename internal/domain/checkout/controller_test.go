package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	calls     *callLog
	cart      *fakeCart
	addresses *fakeAddresses
	gateway   *fakeGateway
	submitter *fakeSubmitter
	journal   *mocks.MockJournal
	cache     *store.MemoryOrderCache
	metrics   *recordingMetrics
}

func newHarness(items []order.Item, addresses ...order.Address) *harness {
	calls := &callLog{}
	return &harness{
		calls:     calls,
		cart:      &fakeCart{items: items},
		addresses: &fakeAddresses{addresses: addresses},
		gateway:   &fakeGateway{log: calls},
		submitter: &fakeSubmitter{log: calls},
		journal:   mocks.NewMockJournal(),
		cache:     store.NewMemoryOrderCache(),
		metrics:   &recordingMetrics{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Carts:     h.cart,
		Addresses: h.addresses,
		Gateway:   h.gateway,
		Submitter: h.submitter,
		Orders:    h.cache,
		Journal:   h.journal,
		Metrics:   h.metrics,
	}
}

func (h *harness) controller(t *testing.T) *Controller {
	t.Helper()
	c := NewController("sess-1", testPrincipal(), h.deps())
	require.NoError(t, c.Initialize(context.Background()))
	require.Equal(t, StateReady, c.State())
	return c
}

func awaitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checkout result")
		return Result{}
	}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	kind, ok := KindOf(err)
	require.True(t, ok, "expected checkout error, got %v", err)
	assert.Equal(t, want, kind)
}

// ============================================
// Scenario Tests
// ============================================

func TestScenarioA_CashOnDelivery(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "10.50", 2)}, validAddress())
	c := h.controller(t)

	require.NoError(t, c.SelectPaymentMethod(order.PaymentCashOnDelivery))
	placed, err := c.Submit(context.Background())

	require.NoError(t, err)
	require.NotNil(t, placed)
	payloads := h.submitter.calls()
	require.Len(t, payloads, 1)
	assert.Equal(t, int64(2100), payloads[0].Amount)
	assert.Equal(t, order.PaymentCashOnDelivery, payloads[0].PaymentMethod)
	assert.Empty(t, payloads[0].PaymentID)
	assert.Equal(t, "user-1", payloads[0].UserID)
	assert.Equal(t, validAddress(), payloads[0].Address)
	assert.Equal(t, 0, h.gateway.calls())

	snap := c.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, placed.ID, snap.Order.ID)
	assert.Nil(t, snap.Error)

	cached, err := h.cache.GetLast(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, placed.ID, cached.ID)

	assert.Equal(t, []string{EventCheckoutReady, EventCheckoutCompleted}, h.journal.EventTypes("sess-1"))
	assert.Equal(t, []string{"cod:success"}, h.metrics.submissions)
}

func TestScenarioB_OnlinePaymentSucceeds(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 3)}, validAddress())
	h.gateway.outcome = ChargeOutcome{Status: AttemptSucceeded, PaymentID: "pay_1"}
	c := h.controller(t)

	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))
	placed, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"charge", "submit"}, h.calls.list())

	payloads := h.submitter.calls()
	require.Len(t, payloads, 1)
	assert.Equal(t, int64(1500), payloads[0].Amount)
	assert.Equal(t, "pay_1", payloads[0].PaymentID)
	assert.Equal(t, order.PaymentOnline, payloads[0].PaymentMethod)

	req := h.gateway.requests[0]
	assert.Equal(t, int64(1500), req.AmountMinor)
	assert.Equal(t, DefaultCurrency, req.Currency)
	assert.Equal(t, "sess-1", req.SessionID)
	assert.Equal(t, "asha@example.com", req.Customer.Email)

	snap := c.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, placed.ID, snap.Order.ID)
	require.NotNil(t, snap.Attempt)
	assert.Equal(t, AttemptSucceeded, snap.Attempt.Status)
	assert.Equal(t, "pay_1", snap.Attempt.PaymentID)

	assert.Equal(t, []string{
		EventCheckoutReady,
		EventPaymentRequested,
		EventPaymentSucceeded,
		EventCheckoutCompleted,
	}, h.journal.EventTypes("sess-1"))
}

func TestScenarioC_OnlinePaymentCancelled(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 3)}, validAddress())
	h.gateway.outcome = ChargeOutcome{Status: AttemptCancelled}
	c := h.controller(t)

	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))
	placed, err := c.Submit(context.Background())

	assert.Nil(t, placed)
	assert.ErrorIs(t, err, ErrPaymentCancelled)
	assertKind(t, err, KindPayment)
	assert.Empty(t, h.submitter.calls())

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, KindPayment, snap.Error.Kind)
	assert.Equal(t, StateAwaitingPayment, snap.Error.State)
	assert.Nil(t, snap.Order)
}

func TestScenarioD_EmptyCart(t *testing.T) {
	h := newHarness(nil, validAddress())
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	results, err := c.Start(context.Background())

	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assertKind(t, err, KindValidation)
	assert.Equal(t, 0, h.gateway.calls())
	assert.Empty(t, h.submitter.calls())
	assert.Equal(t, StateReady, c.State())
}

// ============================================
// Validation Tests
// ============================================

func TestSubmit_InvalidAddressPerformsNoIO(t *testing.T) {
	tests := []struct {
		name    string
		address order.Address
		method  order.PaymentMethod
	}{
		{"missing line1 online", order.Address{PostalCode: "411001"}, order.PaymentOnline},
		{"missing line1 cod", order.Address{PostalCode: "411001"}, order.PaymentCashOnDelivery},
		{"missing postal code online", order.Address{Line1: "12 MG Road"}, order.PaymentOnline},
		{"missing postal code cod", order.Address{Line1: "12 MG Road"}, order.PaymentCashOnDelivery},
		{"blank fields", order.Address{Line1: " ", PostalCode: "\t"}, order.PaymentCashOnDelivery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness([]order.Item{cartItem("p1", "1.00", 1)})
			c := h.controller(t)
			require.NoError(t, c.SelectAddress(tt.address))
			require.NoError(t, c.SelectPaymentMethod(tt.method))

			_, err := c.Submit(context.Background())

			assert.ErrorIs(t, err, order.ErrInvalidAddress)
			assertKind(t, err, KindValidation)
			assert.Equal(t, 0, h.gateway.calls())
			assert.Empty(t, h.submitter.calls())

			snap := c.Snapshot()
			assert.Equal(t, StateReady, snap.State)
			require.NotNil(t, snap.Error)
			assert.Equal(t, KindValidation, snap.Error.Kind)
		})
	}
}

func TestSubmit_AddressRequiredWhenSeveralLoaded(t *testing.T) {
	second := validAddress()
	second.ID = "addr-2"
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress(), second)
	c := h.controller(t)
	assert.Nil(t, c.Snapshot().Address)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentCashOnDelivery))

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAddressRequired)

	require.NoError(t, c.SelectAddressIndex(1))
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "addr-2", h.submitter.calls()[0].Address.ID)
}

func TestSubmit_PaymentMethodRequired(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	c := h.controller(t)

	_, err := c.Submit(context.Background())

	assert.ErrorIs(t, err, ErrPaymentMethodRequired)
	assertKind(t, err, KindValidation)
	assert.Empty(t, h.submitter.calls())
}

func TestSelect_OnlyLegalInReady(t *testing.T) {
	c := NewController("sess-1", testPrincipal(), newHarness(nil).deps())

	assert.ErrorIs(t, c.SelectAddress(validAddress()), ErrIllegalTransition)
	assert.ErrorIs(t, c.SelectAddressIndex(0), ErrIllegalTransition)
	assert.ErrorIs(t, c.SelectPaymentMethod(order.PaymentOnline), ErrIllegalTransition)
	_, err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSelect_RejectsBadInput(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	c := h.controller(t)

	assert.ErrorIs(t, c.SelectAddressIndex(3), ErrAddressIndex)
	assert.ErrorIs(t, c.SelectPaymentMethod("upi"), order.ErrUnknownPaymentMethod)
}

// ============================================
// Payment Tests
// ============================================

func TestOnline_GatewayFailureReturnsToReady(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	h.gateway.outcome = ChargeOutcome{
		Status:      AttemptFailed,
		ReasonCode:  "BAD_REQUEST_ERROR",
		Description: "Card declined",
	}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	_, err := c.Submit(context.Background())

	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "Card declined")
	assert.Empty(t, h.submitter.calls())

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, AttemptFailed, snap.Attempt.Status)
	assert.Equal(t, "BAD_REQUEST_ERROR", snap.Attempt.ReasonCode)
	assert.Equal(t, "Payment failed: Card declined", snap.Error.Message)
	assert.Contains(t, h.journal.EventTypes("sess-1"), EventPaymentFailed)
}

func TestOnline_GatewayErrorIsPaymentError(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	h.gateway.err = ErrGatewayUnavailable
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	_, err := c.Submit(context.Background())

	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assertKind(t, err, KindPayment)
	assert.Equal(t, StateReady, c.State())
	assert.Empty(t, h.submitter.calls())
}

func TestOnline_SuccessWithoutPaymentIDIsRejected(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	h.gateway.outcome = ChargeOutcome{Status: AttemptSucceeded}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	_, err := c.Submit(context.Background())

	assertKind(t, err, KindPayment)
	assert.Empty(t, h.submitter.calls())
}

func TestOnline_NoGatewayConfigured(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	deps := h.deps()
	deps.Gateway = nil
	c := NewController("sess-1", testPrincipal(), deps)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	_, err := c.Start(context.Background())

	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, StateReady, c.State())
}

func TestCancel_DuringAwaitingPayment(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	started := make(chan struct{})
	h.gateway.onCharge = func(ctx context.Context, _ ChargeRequest) (ChargeOutcome, error) {
		close(started)
		<-ctx.Done()
		return ChargeOutcome{Status: AttemptCancelled}, nil
	}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	results, err := c.Start(context.Background())
	require.NoError(t, err)
	<-started
	assert.Equal(t, StateAwaitingPayment, c.State())
	require.NoError(t, c.Cancel())

	res := awaitResult(t, results)
	assert.ErrorIs(t, res.Err, ErrPaymentCancelled)
	assert.Equal(t, StateReady, c.State())
	assert.Empty(t, h.submitter.calls())
	assert.Contains(t, h.journal.EventTypes("sess-1"), EventPaymentCancelled)
}

func TestCancel_DiscardsLateSuccess(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	started := make(chan struct{})
	h.gateway.onCharge = func(ctx context.Context, _ ChargeRequest) (ChargeOutcome, error) {
		close(started)
		<-ctx.Done()
		return ChargeOutcome{Status: AttemptSucceeded, PaymentID: "pay_late"}, nil
	}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	results, err := c.Start(context.Background())
	require.NoError(t, err)
	<-started
	require.NoError(t, c.Cancel())

	res := awaitResult(t, results)
	assert.ErrorIs(t, res.Err, ErrPaymentCancelled)
	assert.Empty(t, h.submitter.calls())
	assert.Contains(t, h.journal.EventTypes("sess-1"), EventPaymentDiscarded)
}

func TestCancel_WithoutPendingPayment(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	c := h.controller(t)

	assert.ErrorIs(t, c.Cancel(), ErrIllegalTransition)
}

func TestSubmit_ReentrantCallRejected(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	started := make(chan struct{})
	release := make(chan struct{})
	h.gateway.onCharge = func(_ context.Context, _ ChargeRequest) (ChargeOutcome, error) {
		close(started)
		<-release
		return ChargeOutcome{Status: AttemptSucceeded, PaymentID: "pay_1"}, nil
	}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	results, err := c.Start(context.Background())
	require.NoError(t, err)
	<-started

	_, err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assertKind(t, err, KindPayment)
	assert.ErrorIs(t, c.SelectPaymentMethod(order.PaymentCashOnDelivery), ErrIllegalTransition)

	close(release)
	res := awaitResult(t, results)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, h.gateway.calls())
	assert.Len(t, h.submitter.calls(), 1)
}

func TestAbandon_DiscardsLateResolution(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	started := make(chan struct{})
	release := make(chan struct{})
	h.gateway.onCharge = func(_ context.Context, _ ChargeRequest) (ChargeOutcome, error) {
		close(started)
		<-release
		return ChargeOutcome{Status: AttemptSucceeded, PaymentID: "pay_1"}, nil
	}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	results, err := c.Start(context.Background())
	require.NoError(t, err)
	<-started
	c.Abandon()
	close(release)

	res := awaitResult(t, results)
	assert.ErrorIs(t, res.Err, ErrSessionAbandoned)
	assert.Empty(t, h.submitter.calls())
	assert.True(t, c.Abandoned())

	_, err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrSessionAbandoned)
}

// ============================================
// Submission Tests
// ============================================

func TestSubmissionFailure_ReturnsToReadyAndAllowsRetry(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "10.50", 2)}, validAddress())
	h.submitter.errs = []error{errors.New("Insufficient stock")}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentCashOnDelivery))

	_, err := c.Submit(context.Background())

	assert.ErrorContains(t, err, "Insufficient stock")
	assertKind(t, err, KindSubmission)
	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Nil(t, snap.Order)
	assert.Equal(t, StateSubmitting, snap.Error.State)
	_, cacheErr := h.cache.GetLast(context.Background(), "user-1")
	assert.ErrorIs(t, cacheErr, store.ErrCacheMiss)

	placed, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "order-2", placed.ID)
	assert.Len(t, h.submitter.calls(), 2)
	assert.Equal(t, StateCompleted, c.State())
	assert.Equal(t, []string{"cod:failure", "cod:success"}, h.metrics.submissions)
}

func TestOnlineSubmissionFailure_DoesNotChargeTwiceWithoutUser(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "5.00", 1)}, validAddress())
	h.gateway.outcome = ChargeOutcome{Status: AttemptSucceeded, PaymentID: "pay_1"}
	h.submitter.errs = []error{errors.New("network failure")}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	_, err := c.Submit(context.Background())

	assertKind(t, err, KindSubmission)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, 1, h.gateway.calls())
	assert.Len(t, h.submitter.calls(), 1)
	assert.Contains(t, h.journal.EventTypes("sess-1"), EventOrderSubmissionFailed)
}

func TestSubmit_JournalFailureDoesNotFailCheckout(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	h.journal.AppendErr = errors.New("db down")
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentCashOnDelivery))

	_, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, c.State())
	assert.NotEmpty(t, h.journal.Calls())
}

// ============================================
// Initialize Tests
// ============================================

func TestInitialize_LoadsConcurrently(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	addressesCalled := make(chan struct{})
	h.addresses.hook = func() { close(addressesCalled) }
	h.cart.hook = func(context.Context) error {
		select {
		case <-addressesCalled:
			return nil
		case <-time.After(time.Second):
			return errors.New("address load never started")
		}
	}

	c := h.controller(t)

	snap := c.Snapshot()
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, int64(100), snap.Total)
	require.NotNil(t, snap.Address)
	assert.Equal(t, "addr-1", snap.Address.ID)
	assert.Empty(t, snap.PaymentMethod)
}

func TestInitialize_LoadFailureThenRetry(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	h.addresses.err = errors.New("unauthorized")
	c := NewController("sess-1", testPrincipal(), h.deps())

	err := c.Initialize(context.Background())

	assert.ErrorContains(t, err, "unauthorized")
	assertKind(t, err, KindLoad)
	snap := c.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, KindLoad, snap.Error.Kind)
	assert.Equal(t, StateLoading, snap.Error.State)

	h.addresses.err = nil
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, StateReady, c.State())
	assert.Nil(t, c.Snapshot().Error)
	assert.Equal(t, []string{EventCheckoutLoadFailed, EventCheckoutReady}, h.journal.EventTypes("sess-1"))
}

func TestInitialize_InvalidCartItem(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 0)}, validAddress())
	c := NewController("sess-1", testPrincipal(), h.deps())

	err := c.Initialize(context.Background())

	assert.ErrorIs(t, err, order.ErrInvalidItem)
	assert.Equal(t, StateFailed, c.State())
}

func TestInitialize_NotLegalWhenReady(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	c := h.controller(t)

	assert.ErrorIs(t, c.Initialize(context.Background()), ErrIllegalTransition)
}

func TestInitialize_ResolvesUserID(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	deps := h.deps()
	deps.Users = fakeResolver{userID: "backend-user"}
	p := testPrincipal()
	p.UserID = ""
	p.ExternalID = "fb-123"
	c := NewController("sess-1", p, deps)

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.SelectPaymentMethod(order.PaymentCashOnDelivery))
	_, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "backend-user", h.submitter.calls()[0].UserID)
	assert.Equal(t, "backend-user", c.Snapshot().UserID)
}

func TestInitialize_UserResolutionFailure(t *testing.T) {
	h := newHarness(nil)
	deps := h.deps()
	deps.Users = fakeResolver{err: errors.New("user not found")}
	p := testPrincipal()
	p.UserID = ""
	c := NewController("sess-1", p, deps)

	err := c.Initialize(context.Background())

	assertKind(t, err, KindLoad)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 0, h.cart.calls)
}

func TestTransitionsAreRecorded(t *testing.T) {
	h := newHarness([]order.Item{cartItem("p1", "1.00", 1)}, validAddress())
	h.gateway.outcome = ChargeOutcome{Status: AttemptSucceeded, PaymentID: "pay_1"}
	c := h.controller(t)
	require.NoError(t, c.SelectPaymentMethod(order.PaymentOnline))

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"idle->loading",
		"loading->ready",
		"ready->awaiting_payment",
		"awaiting_payment->submitting",
		"submitting->completed",
	}, h.metrics.transitions)
	assert.Equal(t, []string{"succeeded"}, h.metrics.payments)
}
