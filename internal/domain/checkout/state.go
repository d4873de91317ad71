package checkout

type State string

const (
	StateIdle            State = "idle"
	StateLoading         State = "loading"
	StateReady           State = "ready"
	StateAwaitingPayment State = "awaiting_payment"
	StateSubmitting      State = "submitting"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// validTransitions defines allowed state transitions
var validTransitions = map[State][]State{
	StateIdle:            {StateLoading},
	StateLoading:         {StateReady, StateFailed},
	StateReady:           {StateAwaitingPayment, StateSubmitting},
	StateAwaitingPayment: {StateSubmitting, StateReady},
	StateSubmitting:      {StateCompleted, StateReady},
	StateCompleted:       {}, // terminal state
	StateFailed:          {StateLoading},
}

// CanTransitionTo checks if the session can move from s to target
func (s State) CanTransitionTo(target State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// InFlight reports whether a payment or submission is running.
func (s State) InFlight() bool {
	return s == StateAwaitingPayment || s == StateSubmitting
}

func (s State) String() string {
	return string(s)
}
