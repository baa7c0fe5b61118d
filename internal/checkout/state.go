package checkout

import (
	"errors"
	"fmt"
	"sync"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateRedirected State = "redirected"
	StateFailed     State = "failed"
)

var (
	ErrSubmissionInFlight = errors.New("checkout already in progress for this cart")
	ErrIllegalTransition  = errors.New("illegal checkout state transition")
)

var transitions = map[State][]State{
	StateIdle:       {StateSubmitting},
	StateSubmitting: {StateRedirected, StateFailed},
	StateFailed:     {StateSubmitting},
	StateRedirected: {StateSubmitting},
}

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Tracker holds the checkout state of every cart seen by this process.
type Tracker struct {
	mu     sync.Mutex
	states map[string]State
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]State)}
}

func (t *Tracker) State(cartID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(cartID)
}

// Begin moves the cart into submitting; only one submission per cart may be open.
func (t *Tracker) Begin(cartID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.get(cartID) == StateSubmitting {
		return ErrSubmissionInFlight
	}
	return t.move(cartID, StateSubmitting)
}

func (t *Tracker) Finish(cartID string, to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(cartID, to)
}

func (t *Tracker) get(cartID string) State {
	if s, ok := t.states[cartID]; ok {
		return s
	}
	return StateIdle
}

func (t *Tracker) move(cartID string, to State) error {
	from := t.get(cartID)
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	t.states[cartID] = to
	return nil
}
