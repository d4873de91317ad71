package payment

import "context"

// Widget is a callback-driven payment UI. Exactly one of the callbacks may
// fire for an opened attempt; the widget may also never call back.
type Widget interface {
	Open(ctx context.Context, opts Options, cb Callbacks) error
	Close(attemptID string)
}

type Callbacks struct {
	OnSuccess func(paymentID string)
	OnFailure func(code, description string)
	OnDismiss func()
}

// Options are handed to the front end to launch the checkout widget.
type Options struct {
	AttemptID   string            `json:"attemptId"`
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Prefill     Prefill           `json:"prefill"`
	Theme       Theme             `json:"theme"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color"`
}
