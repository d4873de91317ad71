package payment

import (
	"context"
	"errors"
	"log"
	"sync"
)

var (
	ErrAttemptNotFound  = errors.New("payment attempt not found")
	ErrInvalidSignature = errors.New("invalid payment signature")
)

// HostedWidget is a Widget whose UI runs in the shopper's browser. The
// browser fetches the options of an attempt and reports the gateway result
// back through Succeed, Fail or Dismiss.
type HostedWidget struct {
	secret string

	mu       sync.Mutex
	attempts map[string]*hostedAttempt
	opened   map[string]chan struct{}
}

type hostedAttempt struct {
	options   Options
	callbacks Callbacks
}

func NewHostedWidget(secret string) *HostedWidget {
	return &HostedWidget{
		secret:   secret,
		attempts: make(map[string]*hostedAttempt),
		opened:   make(map[string]chan struct{}),
	}
}

func (w *HostedWidget) Open(_ context.Context, opts Options, cb Callbacks) error {
	if opts.AttemptID == "" {
		return errors.New("attempt id is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[opts.AttemptID] = &hostedAttempt{options: opts, callbacks: cb}
	ch := w.openedLocked(opts.AttemptID)
	select {
	case <-ch:
	default:
		close(ch)
	}
	return nil
}

func (w *HostedWidget) Close(attemptID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, attemptID)
	delete(w.opened, attemptID)
}

func (w *HostedWidget) openedLocked(attemptID string) chan struct{} {
	ch, ok := w.opened[attemptID]
	if !ok {
		ch = make(chan struct{})
		w.opened[attemptID] = ch
	}
	return ch
}

// Options waits until the attempt is opened and returns its widget options.
func (w *HostedWidget) Options(ctx context.Context, attemptID string) (Options, error) {
	w.mu.Lock()
	if a, ok := w.attempts[attemptID]; ok {
		w.mu.Unlock()
		return a.options, nil
	}
	ch := w.openedLocked(attemptID)
	w.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		w.mu.Lock()
		if _, ok := w.attempts[attemptID]; !ok {
			delete(w.opened, attemptID)
		}
		w.mu.Unlock()
		return Options{}, ErrAttemptNotFound
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.attempts[attemptID]
	if !ok {
		return Options{}, ErrAttemptNotFound
	}
	return a.options, nil
}

// Succeed reports a completed payment. The signature must match.
func (w *HostedWidget) Succeed(attemptID, paymentID, signature string) error {
	a, err := w.lookup(attemptID)
	if err != nil {
		return err
	}
	if paymentID == "" || !Verify(w.secret, attemptID, paymentID, signature) {
		log.Printf("[Payment] Rejected success callback for attempt %s: bad signature", attemptID)
		return ErrInvalidSignature
	}
	a.callbacks.OnSuccess(paymentID)
	return nil
}

func (w *HostedWidget) Fail(attemptID, code, description string) error {
	a, err := w.lookup(attemptID)
	if err != nil {
		return err
	}
	a.callbacks.OnFailure(code, description)
	return nil
}

// Dismiss reports that the shopper closed the widget.
func (w *HostedWidget) Dismiss(attemptID string) error {
	a, err := w.lookup(attemptID)
	if err != nil {
		return err
	}
	a.callbacks.OnDismiss()
	return nil
}

func (w *HostedWidget) lookup(attemptID string) (*hostedAttempt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}
